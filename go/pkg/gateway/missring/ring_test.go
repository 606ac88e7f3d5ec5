package missring_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scionproto/scion-ip-gateway/go/pkg/gateway/classify"
	"github.com/scionproto/scion-ip-gateway/go/pkg/gateway/missring"
)

func TestPublishDrainFIFO(t *testing.T) {
	r := missring.New()
	r.Publish(classify.MapKey(1))
	r.Publish(classify.MapKey(2))
	r.Publish(classify.MapKey(3))

	var got []classify.MapKey
	r.Drain(func(k classify.MapKey) { got = append(got, k) }, time.Second)
	assert.Equal(t, []classify.MapKey{1, 2, 3}, got)
	assert.Equal(t, 0, r.Len())
}

func TestDrainEmptyTimesOut(t *testing.T) {
	r := missring.New()
	start := time.Now()
	called := false
	r.Drain(func(classify.MapKey) { called = true }, 20*time.Millisecond)
	assert.False(t, called)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestOverflowDropsOldest(t *testing.T) {
	r := missring.New()
	for i := 0; i < missring.Capacity+5; i++ {
		r.Publish(classify.MapKey(i))
	}
	require.Equal(t, missring.Capacity, r.Len())

	var got []classify.MapKey
	r.Drain(func(k classify.MapKey) { got = append(got, k) }, time.Second)
	require.Len(t, got, missring.Capacity)
	// the 5 oldest (0..4) were dropped; the surviving window starts at 5.
	assert.Equal(t, classify.MapKey(5), got[0])
	assert.Equal(t, classify.MapKey(missring.Capacity+4), got[len(got)-1])
}

func TestDuplicateKeysAllowed(t *testing.T) {
	r := missring.New()
	r.Publish(classify.MapKey(7))
	r.Publish(classify.MapKey(7))
	var got []classify.MapKey
	r.Drain(func(k classify.MapKey) { got = append(got, k) }, time.Second)
	assert.Equal(t, []classify.MapKey{7, 7}, got)
}

func TestPublishWakesBlockedDrain(t *testing.T) {
	r := missring.New()
	done := make(chan classify.MapKey, 1)
	go func() {
		r.Drain(func(k classify.MapKey) { done <- k }, 2*time.Second)
	}()
	time.Sleep(10 * time.Millisecond)
	r.Publish(classify.MapKey(42))

	select {
	case k := <-done:
		assert.Equal(t, classify.MapKey(42), k)
	case <-time.After(time.Second):
		t.Fatal("drain did not wake on publish")
	}
}
