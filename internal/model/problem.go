package model

import "time"

// Problem is a catalog entry. The catalog is read-mostly: rows are seeded at
// migration time and listed/fetched by the API; authoring problems is a
// separate concern this service does not own.
type Problem struct {
	ID         string    `json:"id"         db:"id"`
	Slug       string    `json:"slug"       db:"slug"` // unique, used in URLs
	Title      string    `json:"title"      db:"title"`
	Difficulty string    `json:"difficulty" db:"difficulty"` // easy | medium | hard
	Topic      string    `json:"topic"      db:"topic"`
	CreatedAt  time.Time `json:"createdAt"  db:"created_at"`
}
