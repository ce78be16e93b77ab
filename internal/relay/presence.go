package relay

import (
	"context"
	"errors"
	"log"

	"ride-relay/internal/models"
	"ride-relay/internal/observability"
	"ride-relay/internal/repositories"
)

// Presence is the connection registry. It binds a live connection to a rider
// or driver and records the connection as the participant's presence pointer.
type Presence struct {
	accounts repositories.AccountRepository
	index    PresenceIndex
}

// NewPresence constructs a Presence.
func NewPresence(accounts repositories.AccountRepository, index PresenceIndex) *Presence {
	return &Presence{accounts: accounts, index: index}
}

// Register binds handle to ref. Last registration wins. Failures are logged
// and swallowed: chat stays usable when the account store is not.
func (p *Presence) Register(ctx context.Context, handle string, ref models.ParticipantRef) {
	if handle == "" || ref.IsZero() {
		observability.IncPresence("invalid")
		return
	}
	if !p.index.Bind(handle, ref) {
		// connection went away before the announcement was processed
		observability.IncPresence("stale")
		return
	}

	err := p.accounts.SetPresencePointer(ctx, ref, handle)
	switch {
	case err == nil:
		observability.IncPresence("registered")
	case errors.Is(err, repositories.ErrParticipantNotFound):
		observability.IncPresence("unknown_participant")
		log.Printf("presence: unknown participant participant=%s conn_id=%s", ref, handle)
	default:
		observability.IncPresence("error")
		log.Printf("presence: set pointer failed participant=%s conn_id=%s err=%v", ref, handle, err)
	}
}

// Unregister drops the in-memory binding. The durable pointer is left alone;
// sending to a dead handle is a no-op.
func (p *Presence) Unregister(handle string) {
	p.index.Unbind(handle)
}
