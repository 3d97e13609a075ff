package subscription

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// DefaultStaleAfter is how long the feed may go without a slot notification
// before CurrentSlot asks the fallback source.
const DefaultStaleAfter = 2 * time.Second

// SlotSource reports the cluster's current slot.
type SlotSource interface {
	CurrentSlot(ctx context.Context) (uint64, error)
}

// SlotFeed owns a websocket connection with one slot subscription feeding a
// SlotTracker. It satisfies the slot source lookup-table activation waits on.
type SlotFeed struct {
	// Fallback answers CurrentSlot while the connection is down or the
	// subscription has gone quiet for StaleAfter. Nil means always wait on
	// the subscription.
	Fallback   SlotSource
	StaleAfter time.Duration

	wsClient    *WebSocketClient
	tracker     *SlotTracker
	subID       uint64
	started     time.Time
	mu          sync.Mutex
	closed      bool
	fallingBack bool
}

// NewSlotFeed connects to wsURL and subscribes to slot updates.
func NewSlotFeed(ctx context.Context, wsURL string) (*SlotFeed, error) {
	wsClient, err := NewWebSocketClient(ctx, wsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create WebSocket client: %w", err)
	}

	tracker := NewSlotTracker()
	subID, err := wsClient.SubscribeSlot(tracker.Handler())
	if err != nil {
		wsClient.Close()
		return nil, fmt.Errorf("failed to subscribe to slots: %w", err)
	}
	log.Printf("📡 subscribed to slot updates on %s", wsURL)

	return &SlotFeed{
		StaleAfter: DefaultStaleAfter,
		wsClient:   wsClient,
		tracker:    tracker,
		subID:      subID,
		started:    time.Now(),
	}, nil
}

// CurrentSlot returns the latest subscribed slot, or the fallback's answer
// when the subscription is down or stale.
func (f *SlotFeed) CurrentSlot(ctx context.Context) (uint64, error) {
	if f.Fallback == nil {
		return f.tracker.CurrentSlot(ctx)
	}
	if f.stale() {
		f.setFallingBack(true)
		return f.Fallback.CurrentSlot(ctx)
	}

	waitCtx, cancel := context.WithTimeout(ctx, f.staleAfter())
	defer cancel()
	slot, err := f.tracker.CurrentSlot(waitCtx)
	if err != nil && ctx.Err() == nil {
		f.setFallingBack(true)
		return f.Fallback.CurrentSlot(ctx)
	}
	f.setFallingBack(false)
	return slot, err
}

func (f *SlotFeed) staleAfter() time.Duration {
	if f.StaleAfter <= 0 {
		return DefaultStaleAfter
	}
	return f.StaleAfter
}

func (f *SlotFeed) stale() bool {
	if !f.wsClient.IsConnected() {
		return true
	}
	slot, at := f.tracker.Latest()
	if slot == 0 {
		at = f.started
	}
	return time.Since(at) > f.staleAfter()
}

func (f *SlotFeed) setFallingBack(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fallingBack == v {
		return
	}
	f.fallingBack = v
	if v {
		log.Printf("⚠️ slot subscription quiet for %s, polling the fallback slot source", f.staleAfter())
	} else {
		log.Printf("📡 slot subscription live again")
	}
}

func (f *SlotFeed) Tracker() *SlotTracker {
	return f.tracker
}

// Close unsubscribes and closes the connection.
func (f *SlotFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true

	if err := f.wsClient.Unsubscribe(f.subID); err != nil {
		log.Printf("Failed to unsubscribe slot subscription %d: %v", f.subID, err)
	}
	return f.wsClient.Close()
}
