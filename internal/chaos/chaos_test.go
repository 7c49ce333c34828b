package chaos

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func recordSleeps(in *Injector) *[]time.Duration {
	var slept []time.Duration
	in.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return &slept
}

func TestInjector_DelaysByMethodClass(t *testing.T) {
	in := NewInjector(Fault{Latency: time.Second}, Fault{Latency: 2 * time.Second})
	slept := recordSleeps(in)
	h := in.Middleware(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/assets", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *slept)
}

func TestInjector_InactiveFaultPassesThrough(t *testing.T) {
	in := NewInjector(Fault{}, Fault{})
	slept := recordSleeps(in)

	rec := httptest.NewRecorder()
	in.Middleware(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, *slept)
}

func TestInjector_AlwaysFail(t *testing.T) {
	in := NewInjector(Fault{}, Fault{FailureRate: 1})
	recordSleeps(in)

	rec := httptest.NewRecorder()
	in.Middleware(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/assets", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	in.SetFaults(Fault{}, Fault{})
	rec = httptest.NewRecorder()
	in.Middleware(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/assets", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInjector_JitterStaysInRange(t *testing.T) {
	in := NewInjector(Fault{Latency: 100 * time.Millisecond, Jitter: 50 * time.Millisecond}, Fault{})
	for i := 0; i < 200; i++ {
		d, fail := in.roll(in.read)
		assert.False(t, fail)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.Less(t, d, 150*time.Millisecond)
	}
}

func TestSleepContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
