package ident

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a unique identifier for friends, expenses, and activities.
func NewID() string {
	return uuid.NewString()
}

// Clock abstracts time.Now so mutation timestamps are injectable in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
