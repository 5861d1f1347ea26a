package misc

import (
	"fmt"
	"time"
)

// TimedOutError is returned when waiting for a condition gave up
type TimedOutError struct {
	What  string
	After time.Duration
}

func (t *TimedOutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", t.What, t.After)
}

func (t *TimedOutError) Is(e error) bool {
	_, ok := e.(*TimedOutError)
	return ok
}

func NewTimedOutError(what string, after time.Duration) error {
	return &TimedOutError{What: what, After: after}
}
