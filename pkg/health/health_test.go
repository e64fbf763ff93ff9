package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-faster/jx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pass() CheckFunc {
	return func(context.Context) error { return nil }
}

func fail(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

type probeBody struct {
	Status string
	Checks map[string]string
}

func probe(t *testing.T, handler http.HandlerFunc) (int, probeBody) {
	t.Helper()
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	body := probeBody{Checks: map[string]string{}}
	err := jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			v, err := d.Str()
			body.Status = v
			return err
		case "checks":
			return d.Obj(func(d *jx.Decoder, name string) error {
				v, err := d.Str()
				body.Checks[name] = v
				return err
			})
		default:
			return d.Skip()
		}
	})
	require.NoError(t, err)
	return w.Code, body
}

func runN(c *check, n int) {
	for range n {
		c.run(context.Background())
	}
}

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		runs       int
		wantCode   int
		wantFailed []string
	}{
		{name: "no checks", wantCode: http.StatusOK},
		{
			name:     "passing",
			checks:   map[string]CheckFunc{"goroutines": pass()},
			runs:     5,
			wantCode: http.StatusOK,
		},
		{
			name:     "failures below threshold",
			checks:   map[string]CheckFunc{"postgres": fail("connection refused")},
			runs:     2,
			wantCode: http.StatusOK,
		},
		{
			name:       "failures reach threshold",
			checks:     map[string]CheckFunc{"postgres": fail("connection refused")},
			runs:       3,
			wantCode:   http.StatusServiceUnavailable,
			wantFailed: []string{"postgres"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			for name, fn := range tt.checks {
				h.AddLivenessCheck(name, time.Second, fn)
			}
			for _, c := range h.liveness {
				runN(c, tt.runs)
			}

			code, body := probe(t, h.LiveEndpoint)
			assert.Equal(t, tt.wantCode, code)
			if len(tt.wantFailed) == 0 {
				assert.Equal(t, "ok", body.Status)
				assert.Empty(t, body.Checks)
				return
			}
			assert.Equal(t, "unhealthy", body.Status)
			for _, name := range tt.wantFailed {
				assert.Equal(t, "connection refused", body.Checks[name])
			}
		})
	}
}

func TestReadyEndpoint_Gate(t *testing.T) {
	h := New()
	h.AddReadinessCheck("redis", time.Second, pass())

	code, body := probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "service is not ready", body.Checks["_readiness"])
	assert.False(t, h.IsReady())

	h.SetReady(true)
	code, body = probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	code, _ = probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReadyEndpoint_OneCheckFailing(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, pass())
	h.AddReadinessCheck("redis", time.Second, fail("i/o timeout"), FailureThreshold(1))
	h.SetReady(true)
	for _, c := range h.readiness {
		runN(c, 1)
	}

	code, body := probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]string{"redis": "i/o timeout"}, body.Checks)
	assert.False(t, h.IsReady())
}

func TestCheck_Thresholds(t *testing.T) {
	var (
		mu   sync.Mutex
		down = true
	)
	flaky := func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if down {
			return errors.New("down")
		}
		return nil
	}
	c := newCheck("flaky", time.Second, flaky, []CheckOption{FailureThreshold(2), SuccessThreshold(2)})

	runN(c, 1)
	_, failed := c.failure()
	assert.False(t, failed, "one failure is below threshold")

	runN(c, 1)
	msg, failed := c.failure()
	assert.True(t, failed)
	assert.Equal(t, "down", msg)

	mu.Lock()
	down = false
	mu.Unlock()

	runN(c, 1)
	_, failed = c.failure()
	assert.True(t, failed, "one success is below recovery threshold")

	runN(c, 1)
	_, failed = c.failure()
	assert.False(t, failed)
}

func TestCheck_ThresholdFloor(t *testing.T) {
	c := newCheck("x", time.Second, pass(), []CheckOption{FailureThreshold(0), SuccessThreshold(-3)})
	assert.Equal(t, 1, c.failureThreshold)
	assert.Equal(t, 1, c.successThreshold)
}

func TestCheck_TimeoutApplied(t *testing.T) {
	c := newCheck("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, []CheckOption{FailureThreshold(1)})

	runN(c, 1)
	msg, failed := c.failure()
	assert.True(t, failed)
	assert.Contains(t, msg, "deadline exceeded")
}

func TestStartStop(t *testing.T) {
	h := New()
	ran := make(chan struct{}, 1)
	h.AddLivenessCheck("tick", time.Second, func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})

	h.Start(context.Background(), time.Hour)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("check did not run on start")
	}
	h.Stop()
	h.Stop()
}

func TestConcurrentProbes(t *testing.T) {
	h := New()
	h.AddLivenessCheck("live", time.Second, fail("err"))
	h.AddReadinessCheck("ready", time.Second, pass())
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 5*time.Millisecond)
	defer h.Stop()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				h.LiveEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
				h.ReadyEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingCheck(t *testing.T) {
	assert.NoError(t, PingCheck(pingerFunc(func(context.Context) error { return nil }))(context.Background()))

	refused := errors.New("connection refused")
	err := PingCheck(pingerFunc(func(context.Context) error { return refused }))(context.Background())
	assert.ErrorIs(t, err, refused)
}

func TestRedisCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	check := RedisCheck(client)
	assert.NoError(t, check(context.Background()))

	mr.Close()
	err := check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}
