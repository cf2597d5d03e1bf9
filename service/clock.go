package service

import (
	"time"
)

// Clock abstracts wall-clock time so deadline logic is deterministic in tests
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// NewClock returns a Clock backed by the system clock
func NewClock() Clock {
	return realClock{}
}
