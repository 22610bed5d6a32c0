package models

import "time"

// User is a human account. Sessions and sign-up live outside this service;
// the row exists so ownership and agent registration can reference it.
type User struct {
	ID        string
	UserName  string
	CreatedAt time.Time
}
