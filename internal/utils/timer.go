package utils

import "time"

// Timer measures elapsed wall-clock time between NewTimer and Stop.
type Timer struct {
	startTime time.Time
	duration  time.Duration
}

// NewTimer creates a started Timer.
func NewTimer() *Timer {
	return &Timer{startTime: time.Now()}
}

// Stop records the time elapsed since NewTimer and returns it.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.startTime)
	return t.duration
}

// GetDuration returns the duration captured by the last Stop, or zero.
func (t *Timer) GetDuration() time.Duration {
	return t.duration
}
