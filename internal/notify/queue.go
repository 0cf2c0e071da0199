// Package notify presents gamification events one at a time.
package notify

import (
	"sync"
	"time"
)

type Kind string

const (
	KindXPGained            Kind = "xp_gained"
	KindLevelUp             Kind = "level_up"
	KindAchievementUnlocked Kind = "achievement_unlocked"
	KindInfo                Kind = "info"
)

type Phase int

const (
	PhaseHidden Phase = iota
	PhaseVisible
	PhaseExiting
)

func (p Phase) String() string {
	switch p {
	case PhaseVisible:
		return "visible"
	case PhaseExiting:
		return "exiting"
	default:
		return "hidden"
	}
}

const (
	DefaultDismissAfter = 5 * time.Second
	// ExitTransition is how long a dismissed notification lingers before it is cleared.
	ExitTransition = 300 * time.Millisecond
)

type Notification struct {
	ID            uint64
	Kind          Kind
	Title         string
	Message       string
	XP            int
	Level         int
	LevelName     string
	AchievementID string
	ShownAt       time.Time
}

// Queue holds at most one notification. Show replaces whatever is on screen.
type Queue struct {
	mu           sync.Mutex
	current      Notification
	phase        Phase
	seq          uint64
	stop         func() bool
	dismissAfter time.Duration
	listeners    []func(Notification, Phase)

	afterFunc func(d time.Duration, f func()) func() bool
	now       func() time.Time
}

func NewQueue(dismissAfter time.Duration) *Queue {
	if dismissAfter <= 0 {
		dismissAfter = DefaultDismissAfter
	}
	return &Queue{
		dismissAfter: dismissAfter,
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
		now: time.Now,
	}
}

// OnChange registers fn to run after every phase change. fn runs without the
// queue lock held.
func (q *Queue) OnChange(fn func(Notification, Phase)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.listeners = append(q.listeners, fn)
}

func (q *Queue) Show(n Notification) {
	q.mu.Lock()
	q.cancelTimerLocked()
	q.seq++
	n.ID = q.seq
	n.ShownAt = q.now()
	q.current = n
	q.phase = PhaseVisible
	seq := q.seq
	q.stop = q.afterFunc(q.dismissAfter, func() { q.dismiss(seq) })
	q.mu.Unlock()

	q.emit(n, PhaseVisible)
}

// Dismiss starts the exit transition of the visible notification.
func (q *Queue) Dismiss() {
	q.mu.Lock()
	seq := q.seq
	q.mu.Unlock()
	q.dismiss(seq)
}

func (q *Queue) dismiss(seq uint64) {
	q.mu.Lock()
	if seq != q.seq || q.phase != PhaseVisible {
		q.mu.Unlock()
		return
	}
	q.cancelTimerLocked()
	q.phase = PhaseExiting
	n := q.current
	q.stop = q.afterFunc(ExitTransition, func() { q.clear(seq) })
	q.mu.Unlock()

	q.emit(n, PhaseExiting)
}

func (q *Queue) clear(seq uint64) {
	q.mu.Lock()
	if seq != q.seq || q.phase != PhaseExiting {
		q.mu.Unlock()
		return
	}
	n := q.current
	q.current = Notification{}
	q.phase = PhaseHidden
	q.stop = nil
	q.mu.Unlock()

	q.emit(n, PhaseHidden)
}

// Current returns the notification on screen, if any, and its phase.
func (q *Queue) Current() (Notification, Phase, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.phase == PhaseHidden {
		return Notification{}, PhaseHidden, false
	}
	return q.current, q.phase, true
}

func (q *Queue) cancelTimerLocked() {
	if q.stop != nil {
		q.stop()
		q.stop = nil
	}
}

func (q *Queue) emit(n Notification, p Phase) {
	q.mu.Lock()
	listeners := append([]func(Notification, Phase){}, q.listeners...)
	q.mu.Unlock()
	for _, fn := range listeners {
		fn(n, p)
	}
}
