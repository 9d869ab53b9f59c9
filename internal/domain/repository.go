package domain

// SessionRepository defines the interface for session history persistence
type SessionRepository interface {
	// Create stores a new session record
	Create(record *SessionRecord) error

	// Update saves changes to an existing record
	Update(record *SessionRecord) error

	// FindByID finds a record by session ID
	FindByID(id string) (*SessionRecord, error)

	// FindRecent returns up to limit records, newest first
	FindRecent(limit int) ([]*SessionRecord, error)

	// FindByState returns records in the given state, newest first
	FindByState(state SessionState) ([]*SessionRecord, error)

	// Delete removes a record by ID
	Delete(id string) error

	// GetStats returns per-outcome counts
	GetStats() (*SessionStats, error)
}

// SessionStats summarizes the history
type SessionStats struct {
	Total     int64 `json:"total"`
	Running   int64 `json:"running"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
}
