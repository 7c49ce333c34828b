package chaos

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nftmarket/internal/catalog"
	"nftmarket/internal/clients"
)

func newCatalog(t *testing.T) catalog.Service {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	seed, err := catalog.DefaultSeed(time.Now())
	require.NoError(t, err)
	store, err := catalog.NewStore(seed...)
	require.NoError(t, err)
	return catalog.NewService(store, nil, catalog.WithLogger(log))
}

func TestPurchaseRaceExperiment(t *testing.T) {
	svc := newCatalog(t)
	assets, err := svc.ListAll(context.Background())
	require.NoError(t, err)
	target := assets[0]

	buyers := make([]string, 16)
	for i := range buyers {
		buyers[i] = fmt.Sprintf("0xbuyer%02d", i)
	}

	result, err := NewEngine().Run(context.Background(), PurchaseRaceExperiment(svc, target.ID, buyers))
	require.NoError(t, err)
	assert.True(t, result.HypothesisHeld, "failed: %v", result.FailedAssertions)
	assert.Empty(t, result.ErrorEvents)

	after, err := svc.GetByID(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, target.Version()+len(buyers), after.Version())
}

func TestFaultInjectionExperiment(t *testing.T) {
	injector := NewInjector(Fault{}, Fault{})
	router := chi.NewRouter()
	router.Use(injector.Middleware)
	catalog.NewHandler(newCatalog(t)).Routes(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	client := clients.NewCatalogClient(server.URL,
		clients.WithRetry(12, time.Millisecond),
		clients.WithBreaker(1000, time.Minute),
	)
	exp := FaultInjectionExperiment(injector, client,
		Fault{Latency: time.Millisecond, FailureRate: 0.2},
		Fault{Latency: 2 * time.Millisecond},
		10,
	)

	result, err := NewEngine().Run(context.Background(), exp)
	require.NoError(t, err)
	assert.True(t, result.HypothesisHeld, "failed: %v", result.FailedAssertions)

	read, write := injector.Faults()
	assert.Equal(t, Fault{}, read)
	assert.Equal(t, Fault{}, write)
}
