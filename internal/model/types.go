package model

import "time"

// User represents a registered user. PhoneNumber is the identity.
type User struct {
	PhoneNumber  string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// Record is an opaque user data item.
type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RecordPatch carries the fields of a partial record update; nil fields are left unchanged.
type RecordPatch struct {
	Name    *string `json:"name,omitempty"`
	Message *string `json:"message,omitempty"`
}

