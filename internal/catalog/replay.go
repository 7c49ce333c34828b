package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"nftmarket/internal/eventstore"
)

const replayBatchSize = 500

// Open rebuilds the catalog from journal. When the journal is still empty,
// seed is journaled first so the demo catalog survives restarts of a
// persistent journal.
func Open(ctx context.Context, journal eventstore.Journal, seed []Asset) (*Store, error) {
	head, err := journal.StreamEvents(ctx, 0, 1)
	if err != nil {
		return nil, fmt.Errorf("read journal head: %w", err)
	}
	if len(head) == 0 && len(seed) > 0 {
		if err := Import(ctx, journal, seed); err != nil {
			return nil, err
		}
	}
	return Rebuild(ctx, journal)
}

// Import journals existing assets as a mint followed by one purchase per
// later ownership record.
// Nothing is journaled unless every asset is a valid record.
func Import(ctx context.Context, journal eventstore.Journal, assets []Asset) error {
	for i := range assets {
		if err := assets[i].check(); err != nil {
			return err
		}
	}

	for _, a := range assets {
		first := a.History[0]
		data, err := json.Marshal(AssetMintedEvent{
			ID:               a.ID,
			Title:            a.Title,
			Description:      a.Description,
			ImageURL:         a.ImageURL,
			AdditionalImages: a.AdditionalImages,
			Creator:          a.Creator,
			Price:            first.Price,
			MintedAt:         a.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal event data: %w", err)
		}
		events := []eventstore.Event{{EventType: eventAssetMinted, EventData: data}}

		for i := 1; i < len(a.History); i++ {
			rec := a.History[i]
			data, err := json.Marshal(AssetPurchasedEvent{
				ID:          a.ID,
				Seller:      a.History[i-1].Owner,
				Buyer:       rec.Owner,
				Price:       rec.Price,
				PurchasedAt: rec.AcquiredAt,
			})
			if err != nil {
				return fmt.Errorf("failed to marshal event data: %w", err)
			}
			events = append(events, eventstore.Event{EventType: eventAssetPurchase, EventData: data})
		}

		if err := journal.AppendEvents(ctx, a.ID, aggregateType, 0, events); err != nil {
			return fmt.Errorf("import asset %s: %w", a.ID, err)
		}
	}
	return nil
}

// Rebuild replays every journaled event into a fresh store.
func Rebuild(ctx context.Context, journal eventstore.Journal) (*Store, error) {
	store, err := NewStore()
	if err != nil {
		return nil, err
	}

	var cursor int64
	for {
		batch, err := journal.StreamEvents(ctx, cursor, replayBatchSize)
		if err != nil {
			return nil, fmt.Errorf("stream journal: %w", err)
		}
		for _, event := range batch {
			if err := apply(store, event); err != nil {
				return nil, err
			}
			cursor = event.Sequence
		}
		if len(batch) < replayBatchSize {
			return store, nil
		}
	}
}

func apply(store *Store, event eventstore.Event) error {
	switch event.EventType {
	case eventAssetMinted:
		var e AssetMintedEvent
		if err := json.Unmarshal(event.EventData, &e); err != nil {
			return fmt.Errorf("decode %s event %d: %w", event.EventType, event.Sequence, err)
		}
		err := store.Insert(Asset{
			ID:               e.ID,
			Title:            e.Title,
			Description:      e.Description,
			ImageURL:         e.ImageURL,
			AdditionalImages: e.AdditionalImages,
			Creator:          e.Creator,
			Owner:            e.Creator,
			Price:            e.Price,
			CreatedAt:        e.MintedAt,
			History: []OwnershipRecord{
				{Owner: e.Creator, AcquiredAt: e.MintedAt, Price: e.Price},
			},
		})
		if err != nil {
			return fmt.Errorf("mint event %d: %w", event.Sequence, err)
		}
	case eventAssetPurchase:
		var e AssetPurchasedEvent
		if err := json.Unmarshal(event.EventData, &e); err != nil {
			return fmt.Errorf("decode %s event %d: %w", event.EventType, event.Sequence, err)
		}
		if _, ok := store.Transfer(e.ID, OwnershipRecord{Owner: e.Buyer, AcquiredAt: e.PurchasedAt, Price: e.Price}); !ok {
			return fmt.Errorf("purchase event %d references unknown asset %s", event.Sequence, e.ID)
		}
	default:
		return fmt.Errorf("unknown event type %q", event.EventType)
	}
	return nil
}
