// Package chaos injects artificial latency and failures into HTTP traffic,
// reproducing the network delay a marketplace front end would see.
package chaos

import (
	"context"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Fault describes what happens to one class of request.
type Fault struct {
	Latency     time.Duration
	Jitter      time.Duration
	FailureRate float64 // 0.0 to 1.0
}

func (f Fault) active() bool {
	return f.Latency > 0 || f.Jitter > 0 || f.FailureRate > 0
}

// Injector applies the read fault to safe methods and the write fault to
// everything else.
type Injector struct {
	tracer trace.Tracer

	mu    sync.Mutex
	read  Fault
	write Fault
	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
}

func NewInjector(read, write Fault) *Injector {
	return &Injector{
		tracer: otel.Tracer("nftmarket/chaos"),
		read:   read,
		write:  write,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:  sleepContext,
	}
}

// SetFaults replaces both faults while the injector is running.
func (in *Injector) SetFaults(read, write Fault) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.read = read
	in.write = write
}

func (in *Injector) Faults() (read, write Fault) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.read, in.write
}

// Middleware delays and possibly fails requests before they reach next.
func (in *Injector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fault := in.faultFor(r.Method)
		if !fault.active() {
			next.ServeHTTP(w, r)
			return
		}

		delay, fail := in.roll(fault)

		ctx, span := in.tracer.Start(r.Context(), "chaos.inject",
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.Int64("chaos.delay_ms", delay.Milliseconds()),
				attribute.Bool("chaos.failure", fail),
			),
		)
		err := in.sleep(ctx, delay)
		span.End()

		if err != nil {
			// client went away while we were stalling
			return
		}
		if fail {
			http.Error(w, "injected failure", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (in *Injector) faultFor(method string) Fault {
	in.mu.Lock()
	defer in.mu.Unlock()
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return in.read
	default:
		return in.write
	}
}

func (in *Injector) roll(f Fault) (time.Duration, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	delay := f.Latency
	if f.Jitter > 0 {
		delay += time.Duration(in.rng.Int63n(int64(2*f.Jitter))) - f.Jitter
	}
	if delay < 0 {
		delay = 0
	}
	return delay, f.FailureRate > 0 && in.rng.Float64() < f.FailureRate
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
