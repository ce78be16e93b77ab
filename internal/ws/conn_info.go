package ws

import "time"

// ConnInfo is what the relay knows about a socket from its handshake.
type ConnInfo struct {
	ConnID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// Age is how long the connection has been open.
func (i ConnInfo) Age() time.Duration {
	if i.ConnectedAt.IsZero() {
		return 0
	}
	return time.Since(i.ConnectedAt)
}
