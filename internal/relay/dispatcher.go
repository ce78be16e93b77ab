package relay

import (
	"context"
	"log"

	"ride-relay/internal/models"
	"ride-relay/internal/observability"
	"ride-relay/internal/repositories"
)

// Dispatcher pushes an event to one connection regardless of room membership.
// Delivery is best effort: a dead or unknown handle is a silent no-op.
type Dispatcher struct {
	sender   ConnectionSender
	index    PresenceIndex
	accounts repositories.AccountRepository
}

// NewDispatcher constructs a Dispatcher. sender may be nil before the
// transport is up; every send is then a no-op.
func NewDispatcher(sender ConnectionSender, index PresenceIndex, accounts repositories.AccountRepository) *Dispatcher {
	return &Dispatcher{sender: sender, index: index, accounts: accounts}
}

// SendToConnection delivers to exactly handle if it is live.
func (d *Dispatcher) SendToConnection(handle, event string, payload any) bool {
	if d == nil || d.sender == nil || handle == "" || event == "" {
		observability.IncDispatch("skipped")
		return false
	}
	if !d.sender.SendTo(handle, event, payload) {
		observability.IncDispatch("not_live")
		return false
	}
	observability.IncDispatch("delivered")
	return true
}

// SendToParticipant follows the participant's presence pointer. When the
// pointer is unreadable or names a dead connection, the process-local binding
// is tried instead, since pointer writes are best effort.
func (d *Dispatcher) SendToParticipant(ctx context.Context, ref models.ParticipantRef, event string, payload any) bool {
	if ref.IsZero() {
		observability.IncDispatch("skipped")
		return false
	}

	handle, err := d.accounts.GetPresencePointer(ctx, ref)
	if err != nil {
		log.Printf("dispatch: presence lookup failed participant=%s err=%v", ref, err)
		handle = ""
	}
	if handle != "" && d.SendToConnection(handle, event, payload) {
		return true
	}

	var bound string
	if d.index != nil {
		bound, _ = d.index.HandleFor(ref)
	}
	if bound == "" || bound == handle {
		if handle == "" {
			observability.IncDispatch("skipped")
		}
		return false
	}
	return d.SendToConnection(bound, event, payload)
}

// Notify routes a notification command. Only a malformed command is an
// error; an offline target is not.
func (d *Dispatcher) Notify(ctx context.Context, n models.Notification) (bool, error) {
	if n.Event == "" {
		return false, ErrInvalidTarget
	}
	var payload any
	if len(n.Data) > 0 {
		payload = n.Data
	}
	if n.ConnectionHandle != "" {
		return d.SendToConnection(n.ConnectionHandle, n.Event, payload), nil
	}

	kind, err := models.ParseParticipantKind(n.ParticipantKind)
	if err != nil || n.ParticipantID == "" {
		return false, ErrInvalidTarget
	}
	return d.SendToParticipant(ctx, models.ParticipantRef{Kind: kind, ID: n.ParticipantID}, n.Event, payload), nil
}
