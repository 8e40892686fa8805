package livechat

import "time"

// Timer — отложенный вызов, который можно отменить.
type Timer interface {
	Stop() bool
}

// Clock планирует отложенные вызовы. В тестах подменяется ручными часами.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock — часы на time.AfterFunc.
var SystemClock Clock = systemClock{}
