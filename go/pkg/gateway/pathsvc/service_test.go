package pathsvc_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scionproto/scion-ip-gateway/go/lib/addr"
	"github.com/scionproto/scion-ip-gateway/go/pkg/gateway/classify"
	"github.com/scionproto/scion-ip-gateway/go/pkg/gateway/missring"
	"github.com/scionproto/scion-ip-gateway/go/pkg/gateway/pathcache"
	"github.com/scionproto/scion-ip-gateway/go/pkg/gateway/pathsvc"
)

type fakeQuerier struct {
	paths map[addr.IsdAsn][]pathsvc.Path
	err   error
	calls []addr.IsdAsn
}

func (f *fakeQuerier) QueryPaths(_ context.Context, dst addr.IsdAsn) ([]pathsvc.Path, error) {
	f.calls = append(f.calls, dst)
	if f.err != nil {
		return nil, f.err
	}
	return f.paths[dst], nil
}

func TestResolveUpsertsOnSuccess(t *testing.T) {
	dst := addr.MustNewIsdAsn(1, 16)
	key := classify.NewMapKey(1, 16)

	q := &fakeQuerier{paths: map[addr.IsdAsn][]pathsvc.Path{
		dst: {{
			Dst: dst, Src: addr.MustNewIsdAsn(1, 32),
			NextHop: net.ParseIP("fc00::ffff"), NextHopPort: 30041,
		}},
	}}
	cache := pathcache.New()
	miss := missring.New()
	svc := pathsvc.New(cache, miss, q, 10*time.Millisecond)

	miss.Publish(key)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go svc.Run(ctx)

	require.Eventually(t, func() bool {
		_, ok := cache.Lookup(key)
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestResolveSkipsOnQueryFailure(t *testing.T) {
	key := classify.NewMapKey(1, 16)

	q := &fakeQuerier{err: assert.AnError}
	cache := pathcache.New()
	miss := missring.New()
	svc := pathsvc.New(cache, miss, q, 10*time.Millisecond)

	miss.Publish(key)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	svc.Run(ctx)

	_, ok := cache.Lookup(key)
	assert.False(t, ok)
	assert.NotEmpty(t, q.calls)
}

func TestResolveSkipsOnEmptyPaths(t *testing.T) {
	dst := addr.MustNewIsdAsn(1, 16)
	key := classify.NewMapKey(1, 16)

	q := &fakeQuerier{paths: map[addr.IsdAsn][]pathsvc.Path{dst: nil}}
	cache := pathcache.New()
	miss := missring.New()
	svc := pathsvc.New(cache, miss, q, 10*time.Millisecond)

	miss.Publish(key)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	svc.Run(ctx)

	_, ok := cache.Lookup(key)
	assert.False(t, ok)
}
