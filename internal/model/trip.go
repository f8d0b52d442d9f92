package model

import "time"

// Trip is a single travel-journal entry owned by exactly one user.
//
// Image, Cost and Rating are pointers because "not supplied" is stored as
// NULL, which is different from an empty filename or a zero cost.
type Trip struct {
	ID          int64     `json:"id"          db:"id"`
	Title       string    `json:"title"       db:"title"`
	Description string    `json:"description" db:"description"`
	Location    string    `json:"location"    db:"location"`
	Image       *string   `json:"image"       db:"image"`
	Cost        *float64  `json:"cost"        db:"cost"`
	Places      string    `json:"places"      db:"places"`
	Rating      *int      `json:"rating"      db:"rating"`
	UserID      int64     `json:"userId"      db:"user_id"`
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`

	// Author is the owner's username, filled by read queries that join users.
	Author string `json:"author" db:"author"`
}
