package domain

import "time"

// Entry is one line of a session transcript as shown to the user.
type Entry struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

// Transcript is the append-only user/assistant history of one UI session.
type Transcript []Entry

// Label returns the display prefix for an entry.
func (e Entry) Label() string {
	if e.Role == RoleUser {
		return "You:"
	}
	return "Assistant:"
}

// TranscriptRecord is a persisted transcript entry.
type TranscriptRecord struct {
	PK        string
	SK        string
	SessionID string
	Role      string
	Content   string
	CreatedAt string
	TTL       int64
}
