package models

import "time"

// SavedSession is the persisted form of one connection's history, written
// by internal/history to data/conversations/<session_id>.json.
//
// SessionID grammar: "<connection_id>_<YYYYmmdd_HHMMSS>", validated by
// internal/history against a fixed regex before any filesystem access.
type SavedSession struct {
	SessionID    string            `json:"session_id"`
	PlayerName   string            `json:"player_name"`
	Provider     string            `json:"provider"`
	Model        string            `json:"model"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	MessageCount int               `json:"message_count"`
	Messages     []ModelMessage    `json:"messages"`
	Metadata     SessionMetadata   `json:"metadata"`
}

// SessionMetadata carries the prompt state needed to fully restore a
// connection's conversational context alongside its message history.
type SessionMetadata struct {
	Template      string            `json:"template"`
	CustomVariables map[string]string `json:"custom_variables"`
}

// SessionSummary is the directory-listing projection of a SavedSession,
// returned by internal/history's List operation.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	PlayerName   string    `json:"player_name"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
