package event

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_ZeroValueNotify(t *testing.T) {
	var e Event[int]
	assert.NotPanics(t, func() { e.Notify(1) })
	assert.Equal(t, 0, e.Len())
}

func TestEvent_NotifyInRegistrationOrder(t *testing.T) {
	var e Event[string]
	var got []string

	e.AttachFunc(func(s string) { got = append(got, "a:"+s) })
	e.AttachFunc(func(s string) { got = append(got, "b:"+s) })
	e.AttachFunc(func(s string) { got = append(got, "c:"+s) })

	e.Notify("x")
	e.Notify("y")

	assert.Equal(t, []string{"a:x", "b:x", "c:x", "a:y", "b:y", "c:y"}, got)
}

type countingListener struct {
	calls int
	last  int
}

func (c *countingListener) Handle(arg int) {
	c.calls++
	c.last = arg
}

func TestEvent_AttachListenerInterface(t *testing.T) {
	var e Event[int]
	l := &countingListener{}
	e.Attach(l)

	e.Notify(7)
	e.Notify(9)

	assert.Equal(t, 2, l.calls)
	assert.Equal(t, 9, l.last)
}

func TestEvent_Detach(t *testing.T) {
	var e Event[int]
	var got []string

	e.AttachFunc(func(int) { got = append(got, "a") })
	sub := e.AttachFunc(func(int) { got = append(got, "b") })
	e.AttachFunc(func(int) { got = append(got, "c") })

	require.True(t, e.Detach(sub))
	assert.False(t, e.Detach(sub), "second detach should report missing subscription")
	assert.False(t, e.Detach(Subscription(0)), "zero subscription never matches")

	e.Notify(0)
	assert.Equal(t, []string{"a", "c"}, got)
	assert.Equal(t, 2, e.Len())
}

func TestEvent_SubscriptionsAreUnique(t *testing.T) {
	var e Event[int]
	seen := make(map[Subscription]bool)
	for i := 0; i < 100; i++ {
		sub := e.AttachFunc(func(int) {})
		assert.False(t, seen[sub], "subscription %d issued twice", sub)
		seen[sub] = true
	}
}

func TestEvent_AttachDuringNotifyAppliesToNextBroadcast(t *testing.T) {
	var e Event[int]
	lateCalls := 0

	e.AttachFunc(func(int) {
		if e.Len() == 1 {
			e.AttachFunc(func(int) { lateCalls++ })
		}
	})

	e.Notify(1)
	assert.Equal(t, 0, lateCalls, "listener attached mid-broadcast must not see the current broadcast")

	e.Notify(2)
	assert.Equal(t, 1, lateCalls)
}

func TestEvent_DetachDuringNotifyKeepsSnapshot(t *testing.T) {
	var e Event[int]
	var got []string
	var second Subscription

	e.AttachFunc(func(int) {
		got = append(got, "first")
		e.Detach(second)
	})
	second = e.AttachFunc(func(int) { got = append(got, "second") })

	e.Notify(1)
	e.Notify(2)

	assert.Equal(t, []string{"first", "second", "first"}, got)
}

func TestEvent_PanicAbortsRemainingListeners(t *testing.T) {
	var e Event[int]
	var got []string

	e.AttachFunc(func(int) { got = append(got, "before") })
	e.AttachFunc(func(int) { panic("boom") })
	e.AttachFunc(func(int) { got = append(got, "after") })

	assert.PanicsWithValue(t, "boom", func() { e.Notify(1) })
	assert.Equal(t, []string{"before"}, got)
}

func TestEvent_ConcurrentAttachAndNotify(t *testing.T) {
	var e Event[int]
	var mu sync.Mutex
	total := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			e.AttachFunc(func(v int) {
				mu.Lock()
				total += v
				mu.Unlock()
			})
		}()
		go func() {
			defer wg.Done()
			e.Notify(0)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, e.Len())
	e.Notify(1)
	assert.Equal(t, 50, total)
}
