// Package spin реализует конечный автомат анимации вращения колеса: разгон и торможение.
package spin

import (
	"encoding/json"
	"sync"
	"time"
)

// Phase описывает фазу анимации.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseImpulse      Phase = "impulse"
	PhaseDeceleration Phase = "deceleration"
	PhaseDirect       Phase = "direct"
)

// Mode описывает способ анимации.
type Mode string

const (
	ModeTwoPhase Mode = "two-phase"
	ModeDirect   Mode = "direct"
)

// ParseMode возвращает режим по строке; неизвестные значения дают ModeTwoPhase.
func ParseMode(s string) Mode {
	if Mode(s) == ModeDirect {
		return ModeDirect
	}
	return ModeTwoPhase
}

// Кривые анимации в формате CSS transition-timing-function.
const (
	EasingNone       = "none"
	EasingLinear     = "linear"
	EasingDecelerate = "cubic-bezier(0.12, 0.8, 0.18, 1)"
)

// DefaultDuration задаёт общую длительность анимации по умолчанию.
const DefaultDuration = 6 * time.Second

const (
	impulsePercent   = 20
	minImpulse       = 300 * time.Millisecond
	impulseOvershoot = 720.0
	handoffBuffer    = 40 * time.Millisecond
	minDeceleration  = 800 * time.Millisecond
	completionBuffer = 120 * time.Millisecond
)

// Transform описывает визуальное состояние колеса, которое должен применить интерфейс.
type Transform struct {
	Phase    Phase         `json:"phase"`
	Heading  float64       `json:"heading"`
	Duration time.Duration `json:"-"`
	Easing   string        `json:"easing"`
	Animated bool          `json:"animated"`
}

// MarshalJSON добавляет длительность перехода в миллисекундах.
func (t Transform) MarshalJSON() ([]byte, error) {
	type alias Transform
	return json.Marshal(struct {
		alias
		DurationMs int64 `json:"durationMs"`
	}{alias(t), t.Duration.Milliseconds()})
}

// ImpulseDuration возвращает длительность фазы разгона для общей длительности total.
func ImpulseDuration(total time.Duration) time.Duration {
	d := (total * impulsePercent / 100).Truncate(time.Millisecond)
	return max(minImpulse, d)
}

// DecelerationDuration возвращает длительность фазы торможения для общей длительности total.
func DecelerationDuration(total time.Duration) time.Duration {
	return max(minDeceleration, total-ImpulseDuration(total))
}

// Transition владеет визуальным углом колеса и проводит его через фазы анимации.
// Sink вызывается под внутренней блокировкой и не должен обращаться к Transition.
type Transition struct {
	mu sync.Mutex

	sched Scheduler
	sink  func(Transform)
	mode  Mode
	total time.Duration

	phase   Phase
	heading float64
	target  float64
	gen     uint64
	timers  []Timer
	onDone  func()
}

// NewTransition создаёт автомат анимации. При nil планировщике используются системные таймеры.
func NewTransition(sink func(Transform), total time.Duration, mode Mode, sched Scheduler) *Transition {
	if sched == nil {
		sched = SystemScheduler{}
	}
	if sink == nil {
		sink = func(Transform) {}
	}
	if total <= 0 {
		total = DefaultDuration
	}
	return &Transition{
		sched: sched,
		sink:  sink,
		mode:  mode,
		total: total,
		phase: PhaseIdle,
	}
}

// Start запускает переход от угла from к углу target и возвращает фактический конечный угол.
// Если переход уже идёт, его отложенные шаги отменяются. В двухфазном режиме конечный угол
// поднимается на целые обороты, пока не окажется дальше точки разгона. onDone вызывается
// ровно один раз по завершении и не вызывается при отмене.
func (t *Transition) Start(from, target float64, onDone func()) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	gen := t.gen

	// Чистая стартовая точка без анимации.
	t.heading = from
	t.sink(Transform{Phase: PhaseIdle, Heading: from, Easing: EasingNone})

	for target <= from {
		target += 360
	}
	t.onDone = onDone

	if t.mode == ModeDirect {
		t.target = target
		t.phase = PhaseDirect
		t.heading = target
		t.sink(Transform{Phase: PhaseDirect, Heading: target, Duration: t.total, Easing: EasingDecelerate, Animated: true})
		t.scheduleLocked(t.total+completionBuffer, func() { t.complete(gen) })
		return target
	}

	overshoot := from + impulseOvershoot
	for target <= overshoot {
		target += 360
	}
	t.target = target

	impulse := ImpulseDuration(t.total)
	t.phase = PhaseImpulse
	t.heading = overshoot
	t.sink(Transform{Phase: PhaseImpulse, Heading: overshoot, Duration: impulse, Easing: EasingLinear, Animated: true})
	t.scheduleLocked(impulse+handoffBuffer, func() { t.decelerate(gen) })

	return target
}

func (t *Transition) decelerate(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen || t.phase != PhaseImpulse {
		return
	}

	d := DecelerationDuration(t.total)
	t.phase = PhaseDeceleration
	t.heading = t.target
	t.sink(Transform{Phase: PhaseDeceleration, Heading: t.target, Duration: d, Easing: EasingDecelerate, Animated: true})
	t.scheduleLocked(d+completionBuffer, func() { t.complete(gen) })
}

func (t *Transition) complete(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.phase == PhaseIdle {
		t.mu.Unlock()
		return
	}
	t.phase = PhaseIdle
	t.timers = nil
	done := t.onDone
	t.onDone = nil
	t.mu.Unlock()

	if done != nil {
		done()
	}
}

// Cancel отменяет все отложенные шаги текущего перехода. Колбэк завершения не вызывается.
func (t *Transition) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Animating сообщает, идёт ли переход.
func (t *Transition) Animating() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase != PhaseIdle
}

// Phase возвращает текущую фазу.
func (t *Transition) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// Heading возвращает последний выставленный визуальный угол.
func (t *Transition) Heading() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.heading
}

func (t *Transition) scheduleLocked(d time.Duration, f func()) {
	t.timers = append(t.timers, t.sched.AfterFunc(d, f))
}

func (t *Transition) stopLocked() {
	for _, tm := range t.timers {
		tm.Stop()
	}
	t.timers = nil
	t.onDone = nil
	t.phase = PhaseIdle
	t.gen++
}
