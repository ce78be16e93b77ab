package ws

import (
	"log"
	"sort"
	"sync"

	"ride-relay/internal/models"
	"ride-relay/internal/observability"
)

// Hub tracks live relay connections, the participant bound to each, and the
// trip rooms they joined. Membership is cleaned up when a client is removed.
type Hub struct {
	mu            sync.RWMutex
	clients       map[string]*Client
	rooms         map[string]map[string]*Client
	clientRooms   map[string]map[string]struct{}
	identities    map[string]models.ParticipantRef
	byParticipant map[models.ParticipantRef]string
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients:       make(map[string]*Client),
		rooms:         make(map[string]map[string]*Client),
		clientRooms:   make(map[string]map[string]struct{}),
		identities:    make(map[string]models.ParticipantRef),
		byParticipant: make(map[models.ParticipantRef]string),
	}
}

// Add registers a live client.
func (h *Hub) Add(client *Client) {
	h.mu.Lock()
	h.clients[client.Handle] = client
	h.clientRooms[client.Handle] = make(map[string]struct{})
	h.updateGaugesLocked()
	h.mu.Unlock()
}

// Remove forgets a client, its rooms and its identity binding.
func (h *Hub) Remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client.Handle] != client {
		return
	}
	for room := range h.clientRooms[client.Handle] {
		h.leaveLocked(room, client.Handle)
	}
	delete(h.clientRooms, client.Handle)
	delete(h.clients, client.Handle)
	h.unbindLocked(client.Handle)
	h.updateGaugesLocked()
}

// Join adds a live connection to room. It returns false if the handle is not live.
func (h *Hub) Join(handle, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	client, ok := h.clients[handle]
	if !ok {
		return false
	}
	members := h.rooms[room]
	if members == nil {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[handle] = client
	h.clientRooms[handle][room] = struct{}{}
	h.updateGaugesLocked()
	return true
}

func (h *Hub) leaveLocked(room, handle string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, handle)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if rooms, ok := h.clientRooms[handle]; ok {
		delete(rooms, room)
	}
}

// EmitToRoom sends event to every current member of room and returns how many
// members accepted the frame. An empty room is a no-op.
func (h *Hub) EmitToRoom(room, event string, payload any) int {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for _, client := range h.rooms[room] {
		members = append(members, client)
	}
	h.mu.RUnlock()

	if len(members) == 0 {
		return 0
	}
	frame, err := encodeFrame(event, payload)
	if err != nil {
		log.Printf("ws: encode frame failed event=%s room=%s: %v", event, room, err)
		return 0
	}

	delivered := 0
	for _, client := range members {
		if client.Enqueue(frame) {
			delivered++
		}
	}
	return delivered
}

// SendTo delivers event to one live connection. It returns false when the
// handle is unknown, closed or overflowing.
func (h *Hub) SendTo(handle, event string, payload any) bool {
	h.mu.RLock()
	client, ok := h.clients[handle]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	frame, err := encodeFrame(event, payload)
	if err != nil {
		log.Printf("ws: encode frame failed event=%s conn_id=%s: %v", event, handle, err)
		return false
	}
	return client.Enqueue(frame)
}

// Bind records which participant a live connection belongs to. The newest
// connection of a participant wins.
func (h *Hub) Bind(handle string, ref models.ParticipantRef) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[handle]; !ok {
		return false
	}
	h.unbindLocked(handle)
	h.identities[handle] = ref
	h.byParticipant[ref] = handle
	return true
}

// Unbind drops the identity of a connection.
func (h *Hub) Unbind(handle string) {
	h.mu.Lock()
	h.unbindLocked(handle)
	h.mu.Unlock()
}

func (h *Hub) unbindLocked(handle string) {
	ref, ok := h.identities[handle]
	if !ok {
		return
	}
	delete(h.identities, handle)
	if h.byParticipant[ref] == handle {
		delete(h.byParticipant, ref)
	}
}

// HandleFor returns the live connection bound to ref.
func (h *Hub) HandleFor(ref models.ParticipantRef) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	handle, ok := h.byParticipant[ref]
	return handle, ok
}

// Identity returns the participant bound to a connection.
func (h *Hub) Identity(handle string) (models.ParticipantRef, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ref, ok := h.identities[handle]
	return ref, ok
}

// ClientInfo returns the connection metadata of a live client.
func (h *Hub) ClientInfo(handle string) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[handle]
	if !ok {
		return ConnInfo{}, false
	}
	return client.Info, true
}

// Snapshot is a point-in-time view for debugging.
type Snapshot struct {
	Connections  int            `json:"connections"`
	Participants int            `json:"participants"`
	Rooms        map[string]int `json:"rooms"`
	RoomNames    []string       `json:"room_names"`
}

func (h *Hub) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	snap := Snapshot{
		Connections:  len(h.clients),
		Participants: len(h.byParticipant),
		Rooms:        make(map[string]int, len(h.rooms)),
		RoomNames:    make([]string, 0, len(h.rooms)),
	}
	for room, members := range h.rooms {
		snap.Rooms[room] = len(members)
		snap.RoomNames = append(snap.RoomNames, room)
	}
	sort.Strings(snap.RoomNames)
	return snap
}

func (h *Hub) updateGaugesLocked() {
	observability.SetWSActive(len(h.clients), len(h.rooms))
}
