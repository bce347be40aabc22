package batch

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/time/rate"

	"github.com/woozymasta/twinfo/internal/address"
	"github.com/woozymasta/twinfo/internal/config"
	"github.com/woozymasta/twinfo/internal/fake"
	"github.com/woozymasta/twinfo/internal/game"
	"github.com/woozymasta/twinfo/internal/serverinfo"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func options(workers int) config.Query {
	return config.Query{
		Timeout:    config.Seconds(100 * time.Millisecond),
		BufferSize: 2048,
		Workers:    workers,
	}
}

// unreachable returns a loopback address with nothing listening on it.
func unreachable(t *testing.T) address.Address {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, conn.Close())

	return address.Address{Host: "127.0.0.1", Port: uint16(port)}
}

type geoStub map[string]string

func (g geoStub) GetCountryCode(ip string) string {
	return g[ip]
}

func TestRunIsolatesFailures(t *testing.T) {
	info := fake.GenerateInfo(4)
	srv, err := fake.Listen("127.0.0.1:0", info)
	require.NoError(t, err)
	defer func() { _ = srv.Close() }()

	for _, workers := range []int{1, 4} {
		r := New(options(workers), geoStub{"127.0.0.1": "ZZ"})

		result := r.Run(context.Background(), []Entry{
			{Name: "A", Address: unreachable(t)},
			{Name: "B", Address: srv.Addr()},
		})

		require.Len(t, result, 2)

		a := result["A"]
		assert.False(t, a.OK())
		assert.Contains(t, []game.Kind{game.KindTimeout, game.KindNetwork}, game.KindOf(a.Err))

		b := result["B"]
		require.True(t, b.OK(), "B failed: %v", b.Err)
		assert.Equal(t, info.Players, b.Response.Info.Players)
		assert.Equal(t, "ZZ", b.Country)
		assert.Equal(t, srv.Addr(), b.Address)

		assert.Equal(t, 1, result.Failed())
	}
}

func stubResponse(name string) *game.Response {
	return &game.Response{
		Info:   &serverinfo.Info{Name: name},
		Remote: netip.MustParseAddrPort("127.0.0.1:8303"),
	}
}

func TestRunDuplicateNamesLastWins(t *testing.T) {
	r := New(options(4), nil)
	r.query = func(_ context.Context, addr address.Address, _ config.Query) (*game.Response, error) {
		// finish the earlier entry last
		if addr.Port == 1 {
			time.Sleep(50 * time.Millisecond)
		}
		return stubResponse(addr.Host), nil
	}

	result := r.Run(context.Background(), []Entry{
		{Name: "dup", Address: address.Address{Host: "first", Port: 1}},
		{Name: "other", Address: address.Address{Host: "other", Port: 2}},
		{Name: "dup", Address: address.Address{Host: "second", Port: 3}},
	})

	require.Len(t, result, 2)
	assert.Equal(t, "second", result["dup"].Response.Info.Name)
	assert.Equal(t, "other", result["other"].Response.Info.Name)
}

func TestRunRetriesTimeouts(t *testing.T) {
	var calls atomic.Int32

	opts := options(1)
	opts.Retries = 2

	r := New(opts, nil)
	r.query = func(context.Context, address.Address, config.Query) (*game.Response, error) {
		if calls.Add(1) < 3 {
			return nil, &game.QueryError{Kind: game.KindTimeout, Op: "receive", Err: game.ErrTimeout}
		}
		return stubResponse("late"), nil
	}

	result := r.Run(context.Background(), []Entry{{Name: "slow", Address: address.Address{Host: "h", Port: 1}}})

	assert.True(t, result["slow"].OK())
	assert.Equal(t, int32(3), calls.Load())
}

func TestRunDoesNotRetryOtherFailures(t *testing.T) {
	var calls atomic.Int32

	opts := options(1)
	opts.Retries = 3

	r := New(opts, nil)
	r.query = func(context.Context, address.Address, config.Query) (*game.Response, error) {
		calls.Add(1)
		return nil, &game.QueryError{Kind: game.KindParse, Op: "parse inf3", Err: serverinfo.ErrTruncated}
	}

	result := r.Run(context.Background(), []Entry{{Name: "broken", Address: address.Address{Host: "h", Port: 1}}})

	assert.Equal(t, game.KindParse, game.KindOf(result["broken"].Err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRunRecoversPanics(t *testing.T) {
	r := New(options(2), nil)
	r.query = func(_ context.Context, addr address.Address, _ config.Query) (*game.Response, error) {
		if addr.Host == "bad" {
			panic("decoder bug")
		}
		return stubResponse(addr.Host), nil
	}

	result := r.Run(context.Background(), []Entry{
		{Name: "bad", Address: address.Address{Host: "bad", Port: 1}},
		{Name: "good", Address: address.Address{Host: "good", Port: 1}},
	})

	assert.ErrorContains(t, result["bad"].Err, "decoder bug")
	assert.True(t, result["good"].OK())
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var once sync.Once
	r := New(options(1), nil)
	r.query = func(_ context.Context, addr address.Address, _ config.Query) (*game.Response, error) {
		once.Do(cancel)
		return stubResponse(addr.Host), nil
	}

	entries := []Entry{
		{Name: "a", Address: address.Address{Host: "a", Port: 1}},
		{Name: "b", Address: address.Address{Host: "b", Port: 1}},
		{Name: "c", Address: address.Address{Host: "c", Port: 1}},
	}
	result := r.Run(ctx, entries)

	require.Len(t, result, 3)
	assert.True(t, result["a"].OK())
	assert.Equal(t, game.KindCanceled, game.KindOf(result["b"].Err))
	assert.Equal(t, game.KindCanceled, game.KindOf(result["c"].Err))
	assert.True(t, errors.Is(result["c"].Err, context.Canceled))
}

func TestRunRateLimited(t *testing.T) {
	opts := options(4)
	opts.Rate = 20

	r := New(opts, nil)
	require.NotNil(t, r.limiter)
	assert.Equal(t, rate.Limit(20), r.limiter.Limit())

	r.query = func(_ context.Context, addr address.Address, _ config.Query) (*game.Response, error) {
		return stubResponse(addr.Host), nil
	}

	start := time.Now()
	result := r.Run(context.Background(), []Entry{
		{Name: "a", Address: address.Address{Host: "a", Port: 1}},
		{Name: "b", Address: address.Address{Host: "b", Port: 1}},
		{Name: "c", Address: address.Address{Host: "c", Port: 1}},
	})

	assert.Zero(t, result.Failed())
	// burst of one, then 50ms per query
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRunEmpty(t *testing.T) {
	result := New(options(8), nil).Run(context.Background(), nil)
	assert.Empty(t, result)
	assert.NotNil(t, result)
}
