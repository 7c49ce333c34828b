package clients

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nftmarket/internal/catalog"
)

func seedAsset(id, title, owner, price string) catalog.Asset {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return catalog.Asset{
		ID:          id,
		Title:       title,
		Description: title + " description",
		ImageURL:    "https://example.com/" + id + ".png",
		Creator:     owner,
		Owner:       owner,
		Price:       price,
		CreatedAt:   at,
		History:     []catalog.OwnershipRecord{{Owner: owner, AcquiredAt: at, Price: price}},
	}
}

func newCatalogServer(t *testing.T, seed ...catalog.Asset) *httptest.Server {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	store, err := catalog.NewStore(seed...)
	require.NoError(t, err)
	svc := catalog.NewService(store, nil, catalog.WithLogger(log))
	router := chi.NewRouter()
	catalog.NewHandler(svc).Routes(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func TestCatalogClient_AgainstService(t *testing.T) {
	server := newCatalogServer(t,
		seedAsset("1", "Abstract Harmony", "0xAAA", "0.5"),
		seedAsset("2", "Cosmic Journey", "0xBBB", "0.85"),
	)
	client := NewCatalogClient(server.URL)
	ctx := context.Background()

	all, err := client.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	asset, err := client.GetByID(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "Cosmic Journey", asset.Title)

	found, err := client.Search(ctx, "harmony")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "1", found[0].ID)

	found, err = client.Search(ctx, "   ")
	require.NoError(t, err)
	assert.Empty(t, found)

	minted, err := client.Create(ctx, "Neon Cityscape", "A futuristic city", "https://example.com/neon.png", "0xCCC", "1.2")
	require.NoError(t, err)
	assert.Equal(t, "0xCCC", minted.Owner)

	bought, err := client.Purchase(ctx, minted.ID, "0xDDD", "1.2")
	require.NoError(t, err)
	assert.Equal(t, "0xDDD", bought.Owner)
	assert.Len(t, bought.History, 2)

	owned, err := client.GetByOwner(ctx, "0xddd")
	require.NoError(t, err)
	require.Len(t, owned, 1)

	created, err := client.GetByCreator(ctx, "0xccc")
	require.NoError(t, err)
	require.Len(t, created, 1)

	events, err := client.Activity(ctx, minted.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestCatalogClient_MapsErrors(t *testing.T) {
	server := newCatalogServer(t, seedAsset("1", "Abstract Harmony", "0xAAA", "0.5"))
	client := NewCatalogClient(server.URL, WithRetry(1, time.Millisecond))
	ctx := context.Background()

	_, err := client.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = client.Purchase(ctx, "1", "0xaaa", "0.5")
	assert.ErrorIs(t, err, catalog.ErrSelfPurchase)
	assert.ErrorIs(t, err, catalog.ErrValidation)

	_, err = client.Create(ctx, "", "d", "https://example.com/x.png", "0xCCC", "1")
	assert.ErrorIs(t, err, catalog.ErrValidation)
	assert.NotErrorIs(t, err, catalog.ErrSelfPurchase)
}

func TestCatalogClient_RetriesReads(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "injected failure", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	t.Cleanup(server.Close)

	client := NewCatalogClient(server.URL, WithRetry(3, time.Millisecond))
	assets, err := client.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, assets)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestCatalogClient_DoesNotRetryWrites(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "injected failure", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	client := NewCatalogClient(server.URL, WithRetry(5, time.Millisecond))
	_, err := client.Purchase(context.Background(), "1", "0xBBB", "1")

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusServiceUnavailable, remote.Status)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestCatalogClient_BreakerOpens(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client := NewCatalogClient(server.URL, WithRetry(1, time.Millisecond), WithBreaker(2, time.Minute))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := client.ListAll(ctx)
		require.Error(t, err)
	}

	_, err := client.ListAll(ctx)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestCatalogClient_ClientErrorsKeepBreakerClosed(t *testing.T) {
	server := newCatalogServer(t)
	client := NewCatalogClient(server.URL, WithRetry(1, time.Millisecond), WithBreaker(1, time.Minute))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := client.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, catalog.ErrNotFound)
	}
}
