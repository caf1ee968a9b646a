package model

import "time"

// Backup is one uploaded encrypted database snapshot.
type Backup struct {
	ID          int64     `json:"id"`
	Filename    string    `json:"filename"`
	SizeBytes   int64     `json:"size_bytes"`
	Destination string    `json:"destination"`
	CreatedAt   time.Time `json:"created_at"`
}
