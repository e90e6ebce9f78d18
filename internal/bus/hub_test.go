package bus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversInPublishOrder(t *testing.T) {
	hub := NewHub[int]()

	var first, second []int
	hub.Subscribe(func(v int) { first = append(first, v) })
	hub.Subscribe(func(v int) { second = append(second, v) })

	for i := 1; i <= 5; i++ {
		hub.Publish(i)
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5}, first)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, second)
}

func TestUnsubscribeLeavesOthersIntact(t *testing.T) {
	hub := NewHub[string]()

	var kept, dropped []string
	hub.Subscribe(func(v string) { kept = append(kept, v) })
	sub := hub.Subscribe(func(v string) { dropped = append(dropped, v) })

	hub.Publish("a")
	sub.Unsubscribe()
	sub.Unsubscribe()
	hub.Publish("b")

	assert.Equal(t, []string{"a", "b"}, kept)
	assert.Equal(t, []string{"a"}, dropped)
	assert.Equal(t, 1, hub.Len())
}

func TestUnsubscribeFromInsideHandler(t *testing.T) {
	hub := NewHub[int]()

	var calls int
	var sub *Subscription
	sub = hub.Subscribe(func(int) {
		calls++
		sub.Unsubscribe()
	})

	hub.Publish(1)
	hub.Publish(2)

	assert.Equal(t, 1, calls)
	assert.Zero(t, hub.Len())
}

func TestHubConcurrentSubscribeAndPublish(t *testing.T) {
	hub := NewHub[int]()

	var mu sync.Mutex
	total := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := hub.Subscribe(func(v int) {
				mu.Lock()
				total += v
				mu.Unlock()
			})
			hub.Publish(1)
			sub.Unsubscribe()
		}()
	}
	wg.Wait()

	require.Zero(t, hub.Len())
	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, total, 8)
}

func TestClearRemovesEverySubscriber(t *testing.T) {
	hub := NewHub[int]()
	hub.Subscribe(func(int) { t.Fatal("cleared handler called") })
	hub.Clear()
	hub.Publish(1)
	assert.Zero(t, hub.Len())
}

func TestNilSubscriptionUnsubscribe(t *testing.T) {
	var sub *Subscription
	sub.Unsubscribe()
}
