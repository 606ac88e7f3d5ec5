package pathcache_test

import (
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scionproto/scion-ip-gateway/go/lib/addr"
	"github.com/scionproto/scion-ip-gateway/go/lib/slayers"
	"github.com/scionproto/scion-ip-gateway/go/pkg/gateway/classify"
	"github.com/scionproto/scion-ip-gateway/go/pkg/gateway/pathcache"
)

func newTestEntry(t *testing.T) *slayers.PathEntry {
	t.Helper()
	return slayers.NewEmptyPathEntry(
		addr.MustNewIsdAsn(1, 150), addr.MustNewIsdAsn(1, 151), net.ParseIP("fc00::1"), 50000,
	)
}

func TestLookupMiss(t *testing.T) {
	c := pathcache.New()
	_, ok := c.Lookup(classify.MapKey(1))
	assert.False(t, ok)
}

func TestUpsertThenLookup(t *testing.T) {
	c := pathcache.New()
	e := newTestEntry(t)
	c.Upsert(classify.MapKey(1), e)
	got, ok := c.Lookup(classify.MapKey(1))
	require.True(t, ok)
	assert.Same(t, e, got)
}

func TestUpsertReplacesWhole(t *testing.T) {
	c := pathcache.New()
	c.Upsert(classify.MapKey(1), newTestEntry(t))
	second := newTestEntry(t)
	second.RouterPort = 60000
	c.Upsert(classify.MapKey(1), second)
	got, ok := c.Lookup(classify.MapKey(1))
	require.True(t, ok)
	assert.Equal(t, uint16(60000), got.RouterPort)
}

func TestCapacityEvictsOldest(t *testing.T) {
	c := pathcache.New()
	for i := 0; i < pathcache.Capacity+10; i++ {
		c.Upsert(classify.MapKey(i), newTestEntry(t))
	}
	assert.Equal(t, pathcache.Capacity, c.Len())
	_, ok := c.Lookup(classify.MapKey(0))
	assert.False(t, ok, "oldest key should have been evicted")
	_, ok = c.Lookup(classify.MapKey(pathcache.Capacity + 9))
	assert.True(t, ok, "newest key should survive")
}

func TestConcurrentLookupsDuringUpsert(t *testing.T) {
	c := pathcache.New()
	c.Upsert(classify.MapKey(1), newTestEntry(t))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					c.Lookup(classify.MapKey(1))
				}
			}
		}()
	}
	for i := 0; i < 200; i++ {
		c.Upsert(classify.MapKey(1), newTestEntry(t))
	}
	close(stop)
	wg.Wait()
}
