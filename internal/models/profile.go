package models

// UserProfile is the singleton per-device account record. The server is
// authoritative for every field; local writes only ever mirror a server
// response (there is no local-edit concept for profile data).
type UserProfile struct {
	ID       string
	Username string
	Email    string

	// Energy is the credit balance consumed by AI interactions. The UI may
	// decrement it optimistically; the sync engine reconciles it from the
	// server afterwards.
	Energy int
}

// PendingDeletion marks a record the user deleted locally before the deletion
// was confirmed synced. Entries are kept in an append-only log in the
// metadata area until cleared.
type PendingDeletion struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}
