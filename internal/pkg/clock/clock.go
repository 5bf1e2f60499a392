package clock

import "time"

// Clock is the only source of "now" for quota day keys and timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func System() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Func adapts a plain function, mostly for tests.
type Func func() time.Time

func (f Func) Now() time.Time {
	return f()
}
