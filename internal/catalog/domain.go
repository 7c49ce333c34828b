// internal/catalog/domain.go
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("asset not found")
	ErrValidation   = errors.New("validation failed")
	ErrSelfPurchase = invalid("buyer already owns this asset")
	ErrRateLimited  = errors.New("rate limit exceeded")

	ErrAssetExists  = errors.New("asset already exists")
	ErrInvalidAsset = errors.New("invalid asset record")
)

func invalid(msg string) error {
	return &fieldError{msg: msg}
}

// fieldError is a validation failure; it matches ErrValidation under errors.Is.
type fieldError struct {
	msg string
}

func (e *fieldError) Error() string { return "validation failed: " + e.msg }

func (e *fieldError) Is(target error) bool { return target == ErrValidation }

// Asset is one mintable, ownable catalog entry.
type Asset struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	ImageURL         string            `json:"image_url"`
	AdditionalImages []string          `json:"additional_images,omitempty"`
	Creator          string            `json:"creator"`
	Owner            string            `json:"owner"`
	Price            string            `json:"price"`
	CreatedAt        time.Time         `json:"created_at"`
	History          []OwnershipRecord `json:"history"`
}

// OwnershipRecord is one transfer in an asset's history, the mint included.
type OwnershipRecord struct {
	Owner      string    `json:"owner"`
	AcquiredAt time.Time `json:"acquired_at"`
	Price      string    `json:"price"`
}

// Version is the number of ownership records; it doubles as the journal version.
func (a *Asset) Version() int {
	return len(a.History)
}

// OwnedBy reports whether identity is the current owner.
func (a *Asset) OwnedBy(identity string) bool {
	return SameIdentity(a.Owner, identity)
}

// check reports the first record invariant a breaks: a non-empty
// history that starts with the creator and ends with the current owner.
func (a *Asset) check() error {
	switch {
	case a.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidAsset)
	case len(a.History) == 0:
		return fmt.Errorf("asset %s: %w: empty ownership history", a.ID, ErrInvalidAsset)
	case !SameIdentity(a.History[0].Owner, a.Creator):
		return fmt.Errorf("asset %s: %w: first owner %s is not the creator %s", a.ID, ErrInvalidAsset, a.History[0].Owner, a.Creator)
	case !SameIdentity(a.History[len(a.History)-1].Owner, a.Owner):
		return fmt.Errorf("asset %s: %w: owner %s is not the last history owner", a.ID, ErrInvalidAsset, a.Owner)
	}
	return nil
}

func (a Asset) clone() Asset {
	if a.AdditionalImages != nil {
		a.AdditionalImages = append([]string(nil), a.AdditionalImages...)
	}
	a.History = append([]OwnershipRecord(nil), a.History...)
	return a
}

// SameIdentity compares two address-like identities ignoring case.
func SameIdentity(a, b string) bool {
	return strings.EqualFold(a, b)
}

// AssetMintedEvent is journaled when a new asset is created.
type AssetMintedEvent struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	ImageURL         string    `json:"image_url"`
	AdditionalImages []string  `json:"additional_images,omitempty"`
	Creator          string    `json:"creator"`
	Price            string    `json:"price"`
	MintedAt         time.Time `json:"minted_at"`
}

// AssetPurchasedEvent is journaled when an asset changes hands.
type AssetPurchasedEvent struct {
	ID          string    `json:"id"`
	Seller      string    `json:"seller"`
	Buyer       string    `json:"buyer"`
	Price       string    `json:"price"`
	PurchasedAt time.Time `json:"purchased_at"`
}

const (
	aggregateType      = "asset"
	eventAssetMinted   = "AssetMinted"
	eventAssetPurchase = "AssetPurchased"
)
