// internal/catalog/implementation.go
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"nftmarket/internal/eventstore"
)

// service implements the Service interface.
type service struct {
	store   *Store
	journal eventstore.Journal
	limiter *rate.Limiter
	log     logrus.FieldLogger
	tracer  trace.Tracer
	now     func() time.Time

	mints     metric.Int64Counter
	purchases metric.Int64Counter

	// serializes mutations so validation, journaling and the store update
	// happen as one step
	mu sync.Mutex
}

// Option configures the catalog service.
type Option func(*service)

// WithRateLimit limits mints and purchases combined to perMinute, allowing
// bursts of burst. A non-positive perMinute disables the limit.
func WithRateLimit(perMinute float64, burst int) Option {
	return func(s *service) {
		if perMinute <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perMinute/60), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *service) { s.log = log }
}

// WithTracerProvider sets where spans are reported.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *service) { s.tracer = tp.Tracer("nftmarket/catalog") }
}

// WithClock overrides the time source used for timestamps and ids.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// NewService creates a new catalog service over store. Mints and purchases
// are recorded in journal, which must already hold the history of every
// asset in store (see Open). A nil journal starts an in-memory one seeded
// from the store's current contents.
func NewService(store *Store, journal eventstore.Journal, opts ...Option) Service {
	s := &service{
		store:   store,
		journal: journal,
		limiter: rate.NewLimiter(rate.Inf, 0),
		log:     logrus.StandardLogger(),
		tracer:  otel.Tracer("nftmarket/catalog"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if journal == nil {
		// every asset in a Store passed Insert, so importing into a fresh
		// journal only fails on a broken Store
		memory := eventstore.NewMemoryJournal()
		if err := Import(context.Background(), memory, store.List()); err != nil {
			panic(fmt.Sprintf("catalog: journal store contents: %v", err))
		}
		s.journal = memory
	}

	meter := otel.Meter("nftmarket/catalog")
	var err error
	if s.mints, err = meter.Int64Counter("catalog.assets.minted"); err != nil {
		s.log.WithError(err).Warn("mint counter unavailable")
	}
	if s.purchases, err = meter.Int64Counter("catalog.assets.purchased"); err != nil {
		s.log.WithError(err).Warn("purchase counter unavailable")
	}
	return s
}

// ListAll returns every asset in catalog order.
func (s *service) ListAll(ctx context.Context) ([]*Asset, error) {
	_, span := s.tracer.Start(ctx, "catalog.list_all")
	defer span.End()

	assets := s.store.List()
	span.SetAttributes(attribute.Int("result.count", len(assets)))
	return pointers(assets), nil
}

// GetByID retrieves an asset by its ID.
func (s *service) GetByID(ctx context.Context, id string) (*Asset, error) {
	_, span := s.tracer.Start(ctx, "catalog.get_by_id",
		trace.WithAttributes(attribute.String("asset.id", id)),
	)
	defer span.End()

	asset, ok := s.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("asset with ID %s: %w", id, ErrNotFound)
	}
	return &asset, nil
}

// GetByCreator returns the assets minted by identity.
func (s *service) GetByCreator(ctx context.Context, identity string) ([]*Asset, error) {
	_, span := s.tracer.Start(ctx, "catalog.get_by_creator")
	defer span.End()

	assets := s.store.Filter(func(a *Asset) bool {
		return SameIdentity(a.Creator, identity)
	})
	span.SetAttributes(attribute.Int("result.count", len(assets)))
	return pointers(assets), nil
}

// GetByOwner returns the assets currently held by identity.
func (s *service) GetByOwner(ctx context.Context, identity string) ([]*Asset, error) {
	_, span := s.tracer.Start(ctx, "catalog.get_by_owner")
	defer span.End()

	assets := s.store.Filter(func(a *Asset) bool {
		return a.OwnedBy(identity)
	})
	span.SetAttributes(attribute.Int("result.count", len(assets)))
	return pointers(assets), nil
}

// Search matches query against titles and descriptions, ignoring case. A
// blank query matches nothing.
func (s *service) Search(ctx context.Context, query string) ([]*Asset, error) {
	_, span := s.tracer.Start(ctx, "catalog.search")
	defer span.End()

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []*Asset{}, nil
	}

	assets := s.store.Filter(func(a *Asset) bool {
		return strings.Contains(strings.ToLower(a.Title), q) ||
			strings.Contains(strings.ToLower(a.Description), q)
	})
	span.SetAttributes(attribute.Int("result.count", len(assets)))
	return pointers(assets), nil
}

// Create mints a new asset owned by its creator.
func (s *service) Create(ctx context.Context, title, description, imageURL, creator, price string, additionalImages ...string) (*Asset, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.create")
	defer span.End()

	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	imageURL = strings.TrimSpace(imageURL)
	creator = strings.TrimSpace(creator)
	price = strings.TrimSpace(price)

	if err := validateMint(title, description, imageURL, creator, price); err != nil {
		return nil, s.fail(span, err)
	}
	if !s.limiter.Allow() {
		return nil, s.fail(span, ErrRateLimited)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	asset := Asset{
		Title:            title,
		Description:      description,
		ImageURL:         imageURL,
		AdditionalImages: trimImages(additionalImages),
		Creator:          creator,
		Owner:            creator,
		Price:            price,
		CreatedAt:        now,
		History: []OwnershipRecord{
			{Owner: creator, AcquiredAt: now, Price: price},
		},
	}
	for nonce := 0; ; nonce++ {
		asset.ID = assetID(title, creator, now, nonce)
		if _, taken := s.store.Get(asset.ID); !taken {
			break
		}
	}
	span.SetAttributes(attribute.String("asset.id", asset.ID))

	eventData, err := json.Marshal(AssetMintedEvent{
		ID:               asset.ID,
		Title:            asset.Title,
		Description:      asset.Description,
		ImageURL:         asset.ImageURL,
		AdditionalImages: asset.AdditionalImages,
		Creator:          asset.Creator,
		Price:            asset.Price,
		MintedAt:         now,
	})
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("failed to marshal event data: %w", err))
	}

	event := eventstore.Event{EventType: eventAssetMinted, EventData: eventData}
	if err := s.journal.AppendEvents(ctx, asset.ID, aggregateType, 0, []eventstore.Event{event}); err != nil {
		return nil, s.fail(span, fmt.Errorf("failed to append event: %w", err))
	}

	if err := s.store.Insert(asset); err != nil {
		return nil, s.fail(span, err)
	}

	if s.mints != nil {
		s.mints.Add(ctx, 1)
	}
	s.log.WithFields(logrus.Fields{
		"asset_id": asset.ID,
		"creator":  creator,
		"price":    price,
	}).Info("asset minted")

	return &asset, nil
}

// Purchase transfers an asset to buyer at price.
func (s *service) Purchase(ctx context.Context, id, buyer, price string) (*Asset, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.purchase",
		trace.WithAttributes(attribute.String("asset.id", id)),
	)
	defer span.End()

	buyer = strings.TrimSpace(buyer)
	price = strings.TrimSpace(price)

	if err := validatePurchase(buyer, price); err != nil {
		return nil, s.fail(span, err)
	}
	if !s.limiter.Allow() {
		return nil, s.fail(span, ErrRateLimited)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.store.Get(id)
	if !ok {
		return nil, s.fail(span, fmt.Errorf("asset with ID %s: %w", id, ErrNotFound))
	}
	if current.OwnedBy(buyer) {
		return nil, s.fail(span, ErrSelfPurchase)
	}

	now := s.now()
	eventData, err := json.Marshal(AssetPurchasedEvent{
		ID:          id,
		Seller:      current.Owner,
		Buyer:       buyer,
		Price:       price,
		PurchasedAt: now,
	})
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("failed to marshal event data: %w", err))
	}

	event := eventstore.Event{EventType: eventAssetPurchase, EventData: eventData}
	if err := s.journal.AppendEvents(ctx, id, aggregateType, current.Version(), []eventstore.Event{event}); err != nil {
		return nil, s.fail(span, fmt.Errorf("failed to append event: %w", err))
	}

	updated, ok := s.store.Transfer(id, OwnershipRecord{Owner: buyer, AcquiredAt: now, Price: price})
	if !ok {
		return nil, s.fail(span, fmt.Errorf("asset with ID %s: %w", id, ErrNotFound))
	}

	if s.purchases != nil {
		s.purchases.Add(ctx, 1)
	}
	s.log.WithFields(logrus.Fields{
		"asset_id": id,
		"seller":   current.Owner,
		"buyer":    buyer,
		"price":    price,
	}).Info("asset purchased")

	return &updated, nil
}

// Activity returns the journaled mint and purchase events of an asset.
func (s *service) Activity(ctx context.Context, id string) ([]eventstore.Event, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.activity",
		trace.WithAttributes(attribute.String("asset.id", id)),
	)
	defer span.End()

	if _, ok := s.store.Get(id); !ok {
		return nil, fmt.Errorf("asset with ID %s: %w", id, ErrNotFound)
	}
	events, err := s.journal.LoadEvents(ctx, id, 0, 0)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("failed to load activity: %w", err))
	}
	return events, nil
}

func (s *service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func pointers(assets []Asset) []*Asset {
	out := make([]*Asset, len(assets))
	for i := range assets {
		out[i] = &assets[i]
	}
	return out
}
