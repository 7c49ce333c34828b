// cmd/chaos/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"nftmarket/internal/catalog"
	"nftmarket/internal/chaos"
	"nftmarket/internal/clients"
	"nftmarket/internal/logging"
)

// Runs a game day against an in-process catalog served through the fault
// injector, reading through the retrying client.
func main() {
	var (
		buyers      = flag.Int("buyers", 32, "concurrent buyers in the purchase race")
		failureRate = flag.Float64("failure-rate", 0.2, "read failure rate injected during the fault experiment")
		latency     = flag.Duration("latency", time.Second, "read latency injected during the fault experiment")
		samples     = flag.Int("samples", 5, "reads per availability sample")
		pause       = flag.Duration("pause", 0, "pause between experiments")
	)
	flag.Parse()

	log, err := logging.New("warn", "text", os.Stderr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to set up logging")
	}

	failed, err := run(context.Background(), log, *buyers, *failureRate, *latency, *samples, *pause)
	if err != nil {
		log.WithError(err).Fatal("Chaos Game Day failed")
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func run(ctx context.Context, log logrus.FieldLogger, buyers int, failureRate float64, latency time.Duration, samples int, pause time.Duration) (int, error) {
	seed, err := catalog.DefaultSeed(time.Now())
	if err != nil {
		return 0, err
	}
	store, err := catalog.NewStore(seed...)
	if err != nil {
		return 0, err
	}
	svc := catalog.NewService(store, nil, catalog.WithLogger(log))

	injector := chaos.NewInjector(chaos.Fault{}, chaos.Fault{})
	router := chi.NewRouter()
	router.Use(injector.Middleware)
	catalog.NewHandler(svc).Routes(router)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	server := &http.Server{Handler: router}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Catalog server stopped")
		}
	}()
	defer server.Close()

	client := clients.NewCatalogClient("http://"+listener.Addr().String(), clients.WithRetry(10, 50*time.Millisecond))

	names := make([]string, buyers)
	for i := range names {
		names[i] = fmt.Sprintf("0xchaos%04d", i)
	}

	engine := chaos.NewEngine()
	engine.Register(chaos.PurchaseRaceExperiment(client, seed[0].ID, names))
	engine.Register(chaos.FaultInjectionExperiment(injector, client,
		chaos.Fault{Latency: latency, Jitter: latency / 4, FailureRate: failureRate},
		chaos.Fault{Latency: 2 * latency},
		samples,
	))

	return engine.ExecuteGameDay(ctx, chaos.GameDay{
		Name:      "Marketplace Chaos Game Day",
		Date:      time.Now(),
		Scenarios: engine.Experiments(),
		Pause:     pause,
	}, os.Stdout)
}
