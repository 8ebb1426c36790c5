package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/krisefikser/internal/queue"
)

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a Clock at t.
func NewClock(t time.Time) *Clock { return &Clock{now: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// EventRecorder collects published auth events.
type EventRecorder struct {
	mu     sync.Mutex
	events []queue.AuthEvent
	Err    error
}

func (r *EventRecorder) Publish(_ context.Context, ev queue.AuthEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of everything published so far.
func (r *EventRecorder) Events() []queue.AuthEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]queue.AuthEvent(nil), r.events...)
}

// Captcha accepts exactly the token Valid.
type Captcha struct {
	Valid string
	Err   error
}

func (c Captcha) Verify(_ context.Context, token string) (bool, error) {
	if c.Err != nil {
		return false, c.Err
	}
	return token == c.Valid, nil
}
