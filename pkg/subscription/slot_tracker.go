package subscription

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SlotTracker keeps the highest slot seen on a subscription and wakes
// goroutines waiting for a slot to be reached.
type SlotTracker struct {
	mu         sync.RWMutex
	slot       uint64
	root       uint64
	lastUpdate time.Time
	changed    chan struct{}
}

func NewSlotTracker() *SlotTracker {
	return &SlotTracker{
		changed: make(chan struct{}),
	}
}

// Update records info. Slots never move backwards.
func (t *SlotTracker) Update(info SlotInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if info.Slot <= t.slot {
		return
	}
	t.slot = info.Slot
	if info.Root > t.root {
		t.root = info.Root
	}
	t.lastUpdate = time.Now()

	close(t.changed)
	t.changed = make(chan struct{})
}

// Handler returns an update handler feeding the tracker.
func (t *SlotTracker) Handler() SlotUpdateHandler {
	return t.Update
}

// Latest returns the highest slot seen and when it arrived. The slot is zero
// before the first notification.
func (t *SlotTracker) Latest() (uint64, time.Time) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.slot, t.lastUpdate
}

// Root returns the highest rooted slot reported.
func (t *SlotTracker) Root() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

// CurrentSlot returns the latest slot, waiting for the first notification if
// none has arrived yet.
func (t *SlotTracker) CurrentSlot(ctx context.Context) (uint64, error) {
	return t.WaitForSlot(ctx, 1)
}

// WaitForSlot blocks until a slot of at least slot has been seen.
func (t *SlotTracker) WaitForSlot(ctx context.Context, slot uint64) (uint64, error) {
	for {
		t.mu.RLock()
		current := t.slot
		changed := t.changed
		t.mu.RUnlock()

		if current >= slot {
			return current, nil
		}

		select {
		case <-ctx.Done():
			return current, fmt.Errorf("waiting for slot %d, at %d: %w", slot, current, ctx.Err())
		case <-changed:
		}
	}
}
