package spin

import "time"

// Timer описывает отменяемую отложенную задачу.
type Timer interface {
	Stop() bool
}

// Scheduler планирует отложенный вызов функции.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemScheduler планирует задачи на системных таймерах.
type SystemScheduler struct{}

// AfterFunc вызывает f в отдельной горутине по истечении d.
func (SystemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
