package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pass(context.Context) error { return nil }

func failWith(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

type body struct {
	Status string
	Checks map[string]string
}

func decode(t *testing.T, w *httptest.ResponseRecorder) body {
	t.Helper()
	var b body
	require.NoError(t, jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			s, err := d.Str()
			b.Status = s
			return err
		case "checks":
			b.Checks = map[string]string{}
			return d.Obj(func(d *jx.Decoder, name string) error {
				msg, err := d.Str()
				b.Checks[name] = msg
				return err
			})
		default:
			return d.Skip()
		}
	}))
	return b
}

func probe(t *testing.T, handler http.HandlerFunc) (int, body) {
	t.Helper()
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	return w.Code, decode(t, w)
}

func runN(c *check, n int) {
	for range n {
		c.run(context.Background())
	}
}

func TestLiveness(t *testing.T) {
	h := New()
	h.AddLivenessCheck("store", time.Second, failWith("connection refused"))
	h.AddLivenessCheck("goroutines", time.Second, pass)

	code, b := probe(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code, "checks start healthy")
	assert.Equal(t, "ok", b.Status)

	runN(h.liveness[0], 2)
	code, _ = probe(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code, "below failure threshold")

	runN(h.liveness[0], 1)
	code, b = probe(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", b.Status)
	assert.Equal(t, map[string]string{"store": "connection refused"}, b.Checks)
}

func TestReadiness(t *testing.T) {
	h := New()
	h.AddReadinessCheck("store", time.Second, pass)
	h.AddReadinessCheck("redis", time.Second, failWith("cache miss"))

	code, b := probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, b.Checks, "_readiness")

	h.SetReady(true)
	code, _ = probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, h.IsReady())

	runN(h.readiness[1], defaultFailureThreshold)
	code, b = probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, b.Checks, "redis")
	assert.NotContains(t, b.Checks, "store")
	assert.False(t, h.IsReady())

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestCheckRecovers(t *testing.T) {
	failing := true
	c := newCheck("flaky", time.Second, func(context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	})
	assert.Nil(t, c.err())

	runN(c, 3)
	assert.False(t, c.healthy.Load())
	assert.EqualError(t, c.err(), "down")

	failing = false
	runN(c, 1)
	assert.True(t, c.healthy.Load())
	assert.NoError(t, c.err())
}

func TestStartStop(t *testing.T) {
	h := New()
	h.AddLivenessCheck("live", time.Second, failWith("err"))
	h.AddReadinessCheck("ready", time.Second, pass)
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 5*time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				probe(t, h.LiveEndpoint)
				probe(t, h.ReadyEndpoint)
			}
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		code, _ := probe(t, h.LiveEndpoint)
		return code == http.StatusServiceUnavailable
	}, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingCheck(t *testing.T) {
	ok := PingCheck("redis", pingerFunc(pass))
	assert.NoError(t, ok(context.Background()))

	bad := PingCheck("mongo", pingerFunc(failWith("no reachable servers")))
	assert.EqualError(t, bad(context.Background()), "ping mongo: no reachable servers")
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	assert.ErrorContains(t, GoroutineCountCheck(0)(context.Background()), "exceeds threshold")
}
