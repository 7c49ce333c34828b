// internal/catalog/service.go
package catalog

import (
	"context"

	"nftmarket/internal/eventstore"
)

// Service defines the query and mutation interface of the catalog.
type Service interface {
	ListAll(ctx context.Context) ([]*Asset, error)
	GetByID(ctx context.Context, id string) (*Asset, error)
	GetByCreator(ctx context.Context, identity string) ([]*Asset, error)
	GetByOwner(ctx context.Context, identity string) ([]*Asset, error)
	Search(ctx context.Context, query string) ([]*Asset, error)
	Create(ctx context.Context, title, description, imageURL, creator, price string, additionalImages ...string) (*Asset, error)
	Purchase(ctx context.Context, id, buyer, price string) (*Asset, error)
	Activity(ctx context.Context, id string) ([]eventstore.Event, error)
}
