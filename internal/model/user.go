// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account in the local store.
//
// Authentication is owned by an external identity provider; the local record
// exists so the rest of the product (problems, submissions, profiles) can
// reference users by a key we control. ExternalID links the two worlds.
//
// WHY ExternalID string (not *string)?
// The link is absent until the first successful reconciliation. We use the
// empty string as the "unlinked" zero value rather than a nullable pointer —
// simpler to work with, and the store enforces uniqueness only on non-empty
// values. Once set, ExternalID is write-once: the repository refuses to
// relink a record to a different external identity.
//
// Email is the canonical cross-system join key. The provider verifies it
// before reconciliation ever runs, so it is safe to match local records on.
type User struct {
	ID          string    `json:"id"          db:"id"`
	ExternalID  string    `json:"externalId"  db:"external_id"` // provider's stable user id, "" until linked
	Email       string    `json:"email"       db:"email"`       // unique, verified by the provider
	Handle      string    `json:"handle"      db:"handle"`      // unique human-chosen identifier
	DisplayName string    `json:"displayName" db:"display_name"`
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt"   db:"updated_at"`
}

// Linked reports whether this record has been tied to an external identity.
func (u *User) Linked() bool {
	return u.ExternalID != ""
}
