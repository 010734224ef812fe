// Package ratelimit provides a token-bucket admission controller for
// outbound service calls, divided into resource classes. Acquire never
// rejects a request; it only delays it. Tokens regenerate lazily from
// elapsed wall-clock time at each acquire or stats call, so an idle
// limiter costs nothing.
package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Class names understood by the limiter. Unknown classes fall back to
// ClassAPI.
const (
	ClassProfile = "profile"
	ClassPost    = "post"
	ClassAPI     = "api"
)

// maxAdaptiveFactor caps how far adaptive mode can slow a class down.
const maxAdaptiveFactor = 3.0

// Class tunes one resource class.
type Class struct {
	// Capacity is the bucket size (burst allowance). Minimum 1.
	Capacity float64

	// RefillPerSec is the steady-state token regeneration rate.
	RefillPerSec float64

	// MinDelay is the minimum spacing between admitted requests,
	// enforced even when tokens are available.
	MinDelay time.Duration

	// AdaptiveAfter is the served-request count past which the class
	// begins slowing itself down. 0 disables adaptive mode.
	AdaptiveAfter int
}

// Stats is a read-only snapshot of one class.
type Stats struct {
	Class     string  `json:"class"`
	Available float64 `json:"available_tokens"`
	Capacity  float64 `json:"max_tokens"`
	Served    int64   `json:"served"`
	Throttled int64   `json:"throttled"`
	Queued    int     `json:"queued"`
}

type waiter struct {
	ready chan struct{}
}

type bucket struct {
	name          string
	capacity      float64
	refillPerSec  float64
	minDelay      time.Duration
	adaptiveAfter int

	mu          sync.Mutex
	tokens      float64
	lastRefill  time.Time
	nextAllowed time.Time
	queue       []*waiter
	timer       *time.Timer
	served      int64
	throttled   int64
}

// Limiter admits requests per resource class. Safe for concurrent use.
type Limiter struct {
	buckets map[string]*bucket
	clock   func() time.Time
}

// New creates a limiter with the given classes. A ClassAPI bucket is added
// with permissive defaults if the map doesn't define one, so unknown-class
// fallback always has a home.
func New(classes map[string]Class) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket, len(classes)+1),
		clock:   time.Now,
	}
	for name, c := range classes {
		l.buckets[name] = newBucket(name, c, l.clock())
	}
	if _, ok := l.buckets[ClassAPI]; !ok {
		l.buckets[ClassAPI] = newBucket(ClassAPI, Class{Capacity: 30, RefillPerSec: 5}, l.clock())
	}
	return l
}

func newBucket(name string, c Class, now time.Time) *bucket {
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillPerSec <= 0 {
		c.RefillPerSec = 1
	}
	return &bucket{
		name:          name,
		capacity:      c.Capacity,
		refillPerSec:  c.RefillPerSec,
		minDelay:      c.MinDelay,
		adaptiveAfter: c.AdaptiveAfter,
		tokens:        c.Capacity,
		lastRefill:    now,
	}
}

func (l *Limiter) bucket(class string) *bucket {
	if b, ok := l.buckets[class]; ok {
		return b
	}
	return l.buckets[ClassAPI]
}

// Acquire blocks until the class admits one request. It never rejects:
// when the bucket is empty or the minimum spacing hasn't elapsed, the
// caller joins a FIFO queue and is released in arrival order as tokens
// regenerate. The only error is ctx expiring while queued.
func (l *Limiter) Acquire(ctx context.Context, class string) error {
	b := l.bucket(class)
	now := l.clock()

	b.mu.Lock()
	b.refillLocked(now)
	if len(b.queue) == 0 && b.admitLocked(now) {
		b.mu.Unlock()
		return nil
	}

	w := &waiter{ready: make(chan struct{})}
	b.queue = append(b.queue, w)
	b.throttled++
	if b.timer == nil {
		b.rescheduleLocked(now, func() { l.wake(b) })
	}
	b.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		if !b.abandon(w) {
			// Admitted in the same instant the context expired; the
			// token is already spent, so report success.
			return nil
		}
		return ctx.Err()
	}
}

// Stats returns a snapshot of one class, refilling first so the token
// count reflects elapsed time.
func (l *Limiter) Stats(class string) Stats {
	b := l.bucket(class)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(l.clock())
	return Stats{
		Class:     b.name,
		Available: b.tokens,
		Capacity:  b.capacity,
		Served:    b.served,
		Throttled: b.throttled,
		Queued:    len(b.queue),
	}
}

// StatsAll returns snapshots for every class, ordered by class name.
func (l *Limiter) StatsAll() []Stats {
	names := make([]string, 0, len(l.buckets))
	for name := range l.buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Stats, 0, len(names))
	for _, name := range names {
		out = append(out, l.Stats(name))
	}
	return out
}

// wake runs when the head-of-queue timer fires: refill, drain whatever the
// bucket now allows in FIFO order, and re-arm for the next head if any.
func (l *Limiter) wake(b *bucket) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.timer = nil
	now := l.clock()
	b.refillLocked(now)
	b.drainLocked(now)
	b.rescheduleLocked(now, func() { l.wake(b) })
}

// abandon removes w from the queue. Returns false if w was already
// admitted.
func (b *bucket) abandon(w *waiter) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, q := range b.queue {
		if q == w {
			b.queue = append(b.queue[:i], b.queue[i+1:]...)
			if len(b.queue) == 0 && b.timer != nil {
				b.timer.Stop()
				b.timer = nil
			}
			return true
		}
	}
	return false
}

// factorLocked returns the adaptive slowdown factor: 1.0 until the class
// has served AdaptiveAfter requests, then grows linearly and caps at
// maxAdaptiveFactor.
func (b *bucket) factorLocked() float64 {
	if b.adaptiveAfter <= 0 || b.served <= int64(b.adaptiveAfter) {
		return 1
	}
	f := 1 + float64(b.served-int64(b.adaptiveAfter))/float64(b.adaptiveAfter)
	if f > maxAdaptiveFactor {
		f = maxAdaptiveFactor
	}
	return f
}

// refillLocked credits tokens for the wall-clock time since the last
// refill, at the current effective rate, clamped to capacity.
func (b *bucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	b.lastRefill = now

	rate := b.refillPerSec / b.factorLocked()
	b.tokens += elapsed.Seconds() * rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
}

// admitLocked spends one token if the bucket allows admission right now.
func (b *bucket) admitLocked(now time.Time) bool {
	if b.tokens < 1 || now.Before(b.nextAllowed) {
		return false
	}
	b.tokens--
	b.served++
	b.nextAllowed = now.Add(time.Duration(float64(b.minDelay) * b.factorLocked()))
	return true
}

// drainLocked releases queued waiters in FIFO order while the bucket
// admits them. The head is never skipped: if it can't be admitted, nobody
// behind it is.
func (b *bucket) drainLocked(now time.Time) {
	for len(b.queue) > 0 && b.admitLocked(now) {
		w := b.queue[0]
		b.queue = b.queue[1:]
		close(w.ready)
	}
}

// rescheduleLocked arms the wakeup timer for the queue head, replacing any
// pending one. No-op when the queue is empty.
func (b *bucket) rescheduleLocked(now time.Time, wake func()) {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if len(b.queue) == 0 {
		return
	}

	d := b.nextAdmitDelayLocked(now)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	b.timer = time.AfterFunc(d, wake)
}

// nextAdmitDelayLocked estimates how long until the head of the queue can
// be admitted: the longer of the token deficit at the effective refill
// rate and the remaining minimum spacing.
func (b *bucket) nextAdmitDelayLocked(now time.Time) time.Duration {
	var d time.Duration
	if b.tokens < 1 {
		rate := b.refillPerSec / b.factorLocked()
		d = time.Duration((1 - b.tokens) / rate * float64(time.Second))
	}
	if wait := b.nextAllowed.Sub(now); wait > d {
		d = wait
	}
	return d
}
