package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAsset(id, title, owner, price string) Asset {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return Asset{
		ID:          id,
		Title:       title,
		Description: title + " description",
		ImageURL:    "https://example.com/" + id + ".png",
		Creator:     owner,
		Owner:       owner,
		Price:       price,
		CreatedAt:   at,
		History:     []OwnershipRecord{{Owner: owner, AcquiredAt: at, Price: price}},
	}
}

func newTestStore(t require.TestingT, seed ...Asset) *Store {
	store, err := NewStore(seed...)
	require.NoError(t, err)
	return store
}

func TestStore_InsertKeepsOrderAndRejectsDuplicates(t *testing.T) {
	store := newTestStore(t, testAsset("1", "One", "0xAAA", "1"), testAsset("2", "Two", "0xBBB", "2"))

	require.NoError(t, store.Insert(testAsset("3", "Three", "0xCCC", "3")))
	assert.ErrorIs(t, store.Insert(testAsset("2", "Duplicate", "0xDDD", "4")), ErrAssetExists)

	list := store.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, "Two", list[1].Title)
}

func TestStore_ReturnsCopies(t *testing.T) {
	store := newTestStore(t, testAsset("1", "One", "0xAAA", "1"))

	got, ok := store.Get("1")
	require.True(t, ok)
	got.Owner = "0xEVIL"
	got.History[0].Owner = "0xEVIL"
	got.History = append(got.History, OwnershipRecord{Owner: "0xEVIL"})

	again, ok := store.Get("1")
	require.True(t, ok)
	assert.Equal(t, "0xAAA", again.Owner)
	assert.Equal(t, "0xAAA", again.History[0].Owner)
	assert.Len(t, again.History, 1)
}

func TestStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, ok := store.Get("nope")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestStore_Transfer(t *testing.T) {
	store := newTestStore(t, testAsset("1", "One", "0xAAA", "0.5"), testAsset("2", "Two", "0xBBB", "1"))
	at := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	updated, ok := store.Transfer("1", OwnershipRecord{Owner: "0xCCC", AcquiredAt: at, Price: "0.6"})
	require.True(t, ok)
	assert.Equal(t, "0xCCC", updated.Owner)
	assert.Equal(t, "0.6", updated.Price)
	require.Len(t, updated.History, 2)
	assert.Equal(t, at, updated.History[1].AcquiredAt)

	other, _ := store.Get("2")
	assert.Equal(t, "0xBBB", other.Owner)
	assert.Len(t, other.History, 1)

	_, ok = store.Transfer("missing", OwnershipRecord{Owner: "0xCCC"})
	assert.False(t, ok)
	assert.Equal(t, 2, store.Len())
}

func TestStore_FilterPreservesOrder(t *testing.T) {
	store := newTestStore(t,
		testAsset("1", "One", "0xAAA", "1"),
		testAsset("2", "Two", "0xBBB", "1"),
		testAsset("3", "Three", "0xAAA", "1"),
	)

	got := store.Filter(func(a *Asset) bool { return a.Owner == "0xAAA" })
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
}

func TestStore_InsertRejectsBrokenRecords(t *testing.T) {
	noHistory := testAsset("0", "Zero", "0xAAA", "1")
	noHistory.History = nil

	notCreator := testAsset("1", "One", "0xAAA", "1")
	notCreator.History[0].Owner = "0xBBB"

	staleOwner := testAsset("2", "Two", "0xAAA", "1")
	staleOwner.Owner = "0xCCC"

	noID := testAsset("", "Blank", "0xAAA", "1")

	store := newTestStore(t)
	for name, a := range map[string]Asset{
		"empty history":        noHistory,
		"first owner":          notCreator,
		"owner not last owner": staleOwner,
		"missing id":           noID,
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, store.Insert(a), ErrInvalidAsset)
		})
	}
	assert.Equal(t, 0, store.Len())

	lower := testAsset("3", "Three", "0xAAA", "1")
	lower.Owner = "0xaaa"
	assert.NoError(t, store.Insert(lower), "identities compare ignoring case")
}

func TestNewStore_RejectsBrokenSeed(t *testing.T) {
	broken := testAsset("0", "Zero", "0xAAA", "1")
	broken.History = nil

	_, err := NewStore(broken, testAsset("1", "One", "0xAAA", "1"))
	assert.ErrorIs(t, err, ErrInvalidAsset)

	_, err = NewStore(testAsset("1", "One", "0xAAA", "1"), testAsset("1", "Again", "0xBBB", "1"))
	assert.ErrorIs(t, err, ErrAssetExists)
}
