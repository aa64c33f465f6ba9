// Package pacer provides a cooldown gate shared by all outbound API requests
//
// Key properties:
//   - Two releases are never closer together than the cooldown, measured from
//     the moment each one actually happened
//   - Concurrent callers are released one at a time, in the order they asked
//   - There is no queue limit; extra callers simply wait longer
package pacer

import (
	"context"
	"time"
)

// DefaultCooldown is the minimum spacing between two API requests
const DefaultCooldown = 130 * time.Millisecond

// Pacer releases callers no faster than one per cooldown
type Pacer struct {
	cooldown time.Duration

	// slot holds a token while a caller is inside the gate. Blocked senders
	// are queued in arrival order.
	slot        chan struct{}
	lastRelease time.Time

	// released is called with each release time while the slot is held
	released func(time.Time)
}

// New creates a pacer. A non-positive cooldown disables pacing.
func New(cooldown time.Duration) *Pacer {
	return &Pacer{
		cooldown: cooldown,
		slot:     make(chan struct{}, 1),
	}
}

// Acquire blocks until the caller may issue its request. It only fails when
// ctx is done first, in which case the caller leaves the queue without
// consuming a release.
func (p *Pacer) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.cooldown <= 0 {
		return nil
	}

	select {
	case p.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.slot }()

	if !p.lastRelease.IsZero() {
		if wait := time.Until(p.lastRelease.Add(p.cooldown)); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
	}

	p.lastRelease = time.Now()
	if p.released != nil {
		p.released(p.lastRelease)
	}
	return nil
}

// Cooldown returns the configured spacing
func (p *Pacer) Cooldown() time.Duration {
	return p.cooldown
}
