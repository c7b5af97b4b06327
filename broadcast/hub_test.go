package broadcast

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeConn struct {
	events chan Event
	fail   error

	mu     sync.Mutex
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan Event, 32)}
}

func (c *fakeConn) Send(ev Event) error {
	if c.fail != nil {
		return c.fail
	}
	c.events <- ev
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) next(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-c.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func (c *fakeConn) none(t *testing.T) {
	t.Helper()
	select {
	case ev := <-c.events:
		t.Fatalf("unexpected event %q", ev.Name)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastReachesEveryone(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	a, b := newFakeConn(), newFakeConn()
	hub.Register("a@uni.test", a)
	hub.Register("b@uni.test", b)

	hub.Broadcast(Event{Name: "queueUpdated"})
	for _, c := range []*fakeConn{a, b} {
		if ev := c.next(t); ev.Name != "queueUpdated" {
			t.Errorf("got event %q, want queueUpdated", ev.Name)
		}
	}
}

func TestNotifyOne(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	a, b := newFakeConn(), newFakeConn()
	hub.Register("a@uni.test", a)
	hub.Register("b@uni.test", b)

	if !hub.NotifyOne("a@uni.test", Event{Name: "helpIncoming"}) {
		t.Fatal("NotifyOne(a) = false, want true")
	}
	if ev := a.next(t); ev.Name != "helpIncoming" {
		t.Errorf("got event %q, want helpIncoming", ev.Name)
	}
	b.none(t)

	if hub.NotifyOne("nobody@uni.test", Event{Name: "helpIncoming"}) {
		t.Error("NotifyOne(unregistered) = true, want false")
	}
}

func TestRegisterReplacesConnection(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	old, fresh := newFakeConn(), newFakeConn()
	hub.Register("a@uni.test", old)
	hub.Register("a@uni.test", fresh)

	if !old.isClosed() {
		t.Error("replaced connection was not closed")
	}
	if hub.Len() != 1 {
		t.Errorf("Len() = %d, want 1", hub.Len())
	}
	// the stale connection must not remove its replacement
	if hub.Unregister("a@uni.test", old) {
		t.Error("Unregister(stale conn) = true, want false")
	}
	if conn, ok := hub.Lookup("a@uni.test"); !ok || conn != fresh {
		t.Error("Lookup() did not return the replacement connection")
	}
}

func TestUnregister(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	a := newFakeConn()
	hub.Register("a@uni.test", a)

	if !hub.Unregister("a@uni.test", a) {
		t.Fatal("Unregister() = false, want true")
	}
	if !a.isClosed() {
		t.Error("unregistered connection was not closed")
	}
	if _, ok := hub.Lookup("a@uni.test"); ok {
		t.Error("identity still registered after Unregister")
	}
	hub.Broadcast(Event{Name: "queueUpdated"})
	a.none(t)
}

func TestFailedSendEvicts(t *testing.T) {
	evicted := make(chan string, 1)
	hub := NewHub(WithErrorHandler(func(identity string, err error) { evicted <- identity }))
	defer hub.Close()
	broken := newFakeConn()
	broken.fail = errors.New("broken pipe")
	hub.Register("a@uni.test", broken)

	hub.Broadcast(Event{Name: "queueUpdated"})
	select {
	case id := <-evicted:
		if id != "a@uni.test" {
			t.Errorf("evicted %q, want a@uni.test", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not evicted")
	}
	if hub.Len() != 0 {
		t.Errorf("Len() = %d after eviction, want 0", hub.Len())
	}
}

// blockingConn never finishes a Send until released.
type blockingConn struct {
	release chan struct{}
}

func (c *blockingConn) Send(Event) error { <-c.release; return nil }
func (c *blockingConn) Close() error     { return nil }

func TestSlowClientDoesNotBlock(t *testing.T) {
	hub := NewHub(WithOutboxSize(1))
	slow := &blockingConn{release: make(chan struct{})}
	defer close(slow.release)
	defer hub.Close()
	fast := newFakeConn()
	hub.Register("slow@uni.test", slow)
	hub.Register("fast@uni.test", fast)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Broadcast(Event{Name: "queueUpdated"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a slow client")
	}
	fast.next(t)
}
