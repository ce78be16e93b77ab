package relay

import (
	"context"
	"sync"
	"time"

	"ride-relay/internal/models"
	"ride-relay/internal/repositories"
)

type emission struct {
	room    string
	event   string
	payload any
}

type roomRecorder struct {
	mu      sync.Mutex
	members map[string]int
	events  []emission
	onEmit  func()
}

func (r *roomRecorder) EmitToRoom(room, event string, payload any) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.onEmit != nil {
		r.onEmit()
	}
	r.events = append(r.events, emission{room: room, event: event, payload: payload})
	return r.members[room]
}

func (r *roomRecorder) emitted() []emission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]emission(nil), r.events...)
}

type liveSender struct {
	mu   sync.Mutex
	live map[string]bool
	sent map[string][]string
}

func newLiveSender(handles ...string) *liveSender {
	s := &liveSender{live: map[string]bool{}, sent: map[string][]string{}}
	for _, h := range handles {
		s.live[h] = true
	}
	return s
}

func (s *liveSender) SendTo(handle, event string, _ any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live[handle] {
		return false
	}
	s.sent[handle] = append(s.sent[handle], event)
	return true
}

type memoryIndex struct {
	mu        sync.Mutex
	live      map[string]bool
	byHandle  map[string]models.ParticipantRef
	byPartner map[models.ParticipantRef]string
}

func newMemoryIndex(handles ...string) *memoryIndex {
	idx := &memoryIndex{
		live:      map[string]bool{},
		byHandle:  map[string]models.ParticipantRef{},
		byPartner: map[models.ParticipantRef]string{},
	}
	for _, h := range handles {
		idx.live[h] = true
	}
	return idx
}

func (m *memoryIndex) Bind(handle string, ref models.ParticipantRef) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.live[handle] {
		return false
	}
	m.byHandle[handle] = ref
	m.byPartner[ref] = handle
	return true
}

func (m *memoryIndex) Unbind(handle string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.byHandle[handle]
	if !ok {
		return
	}
	delete(m.byHandle, handle)
	if m.byPartner[ref] == handle {
		delete(m.byPartner, ref)
	}
}

func (m *memoryIndex) HandleFor(ref models.ParticipantRef) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.byPartner[ref]
	return h, ok
}

// conversationStore enforces one conversation per trip. The first n lookups
// miss and are held until all n callers have looked, so every caller goes on
// to create.
type conversationStore struct {
	mu      sync.Mutex
	n       int
	misses  int
	ready   chan struct{}
	convs   map[string]models.Conversation
	creates int
	nextID  int64
}

func newConversationStore(concurrentMisses int) *conversationStore {
	s := &conversationStore{
		n:     concurrentMisses,
		ready: make(chan struct{}),
		convs: map[string]models.Conversation{},
	}
	if concurrentMisses == 0 {
		close(s.ready)
	}
	return s
}

func (s *conversationStore) GetByTrip(_ context.Context, tripID string) (models.Conversation, error) {
	s.mu.Lock()
	if s.misses < s.n {
		s.misses++
		if s.misses == s.n {
			close(s.ready)
		}
		s.mu.Unlock()
		<-s.ready
		return models.Conversation{}, repositories.ErrConversationNotFound
	}
	conv, ok := s.convs[tripID]
	s.mu.Unlock()
	if !ok {
		return models.Conversation{}, repositories.ErrConversationNotFound
	}
	return conv, nil
}

func (s *conversationStore) Create(_ context.Context, trip models.Trip) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if _, ok := s.convs[trip.ID]; ok {
		return models.Conversation{}, repositories.ErrDuplicateConversation
	}
	s.nextID++
	conv := models.Conversation{
		ID:        s.nextID,
		TripID:    trip.ID,
		RiderID:   trip.RiderID,
		DriverID:  trip.DriverID,
		CreatedAt: time.Now(),
	}
	s.convs[trip.ID] = conv
	return conv, nil
}

func (s *conversationStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convs)
}

type tripTable map[string]models.Trip

func (t tripTable) GetTrip(_ context.Context, tripID string) (models.Trip, error) {
	trip, ok := t[tripID]
	if !ok {
		return models.Trip{}, repositories.ErrTripNotFound
	}
	return trip, nil
}

type messageStore struct {
	mu     sync.Mutex
	rows   []models.Message
	err    error
	onSave func()
}

func (s *messageStore) CreateMessage(_ context.Context, conversationID int64, sender models.ParticipantRef, text string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return models.Message{}, s.err
	}
	if s.onSave != nil {
		s.onSave()
	}
	msg := models.Message{
		ID:             int64(len(s.rows) + 1),
		ConversationID: conversationID,
		SenderID:       sender.ID,
		SenderKind:     sender.Kind,
		Text:           text,
		CreatedAt:      time.Now(),
	}
	s.rows = append(s.rows, msg)
	return msg, nil
}

func (s *messageStore) ListByConversation(_ context.Context, conversationID int64) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Message{}
	for _, m := range s.rows {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *messageStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

var (
	rider  = models.ParticipantRef{Kind: models.KindRider, ID: "R1"}
	driver = models.ParticipantRef{Kind: models.KindDriver, ID: "D1"}
	trips  = tripTable{
		"T9":  {ID: "T9", RiderID: "R1", DriverID: "D1"},
		"T10": {ID: "T10", RiderID: "R2"},
	}
)
