package models

import "time"

// Profile is an account with its generation usage counter
type Profile struct {
	ID         string    `bson:"_id" json:"id"`
	Email      string    `bson:"email" json:"email"`
	UsageCount int       `bson:"usage_count" json:"usage_count"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updated_at"`
}

// LoginCode is a pending magic-link code. Only the bcrypt hash is stored.
type LoginCode struct {
	Email     string    `bson:"_id" json:"email"`
	CodeHash  string    `bson:"code_hash" json:"-"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	Attempts  int       `bson:"attempts" json:"attempts"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
