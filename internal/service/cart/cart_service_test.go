package cart

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupcart/internal/model"
	"groupcart/pkg/utils"
)

var silkSaree = model.Product{ID: "42", Name: "Silk Saree", Price: 2499, Category: "saree", Tags: []string{"festive"}}

func TestAddSameContributorAndDifferentContributor(t *testing.T) {
	ctx := context.Background()
	svc := NewCartService()

	_, err := svc.Add(ctx, "festive-123", silkSaree, "alice")
	require.NoError(t, err)
	items, err := svc.Add(ctx, "festive-123", silkSaree, "alice")
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, "alice", items[0].AddedBy)

	items, err = svc.Add(ctx, "festive-123", silkSaree, "bob")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, "bob", items[1].AddedBy)
	assert.Equal(t, 1, items[1].Quantity)
	assert.Equal(t, "festive-123", items[1].RoomID)
}

func TestAddValidation(t *testing.T) {
	svc := NewCartService()

	_, err := svc.Add(context.Background(), "", silkSaree, "alice")
	assert.ErrorIs(t, err, utils.ErrValidation)

	_, err = svc.Add(context.Background(), "r", model.Product{Name: "no id"}, "alice")
	assert.ErrorIs(t, err, utils.ErrValidation)
}

func TestIncrementDecrement(t *testing.T) {
	ctx := context.Background()
	svc := NewCartService()
	_, _ = svc.Add(ctx, "r", silkSaree, "alice")

	items, ok := svc.Increment(ctx, "r", "42", "alice")
	require.True(t, ok)
	assert.Equal(t, 2, items[0].Quantity)

	_, ok = svc.Increment(ctx, "r", "42", "bob")
	assert.False(t, ok)
	_, ok = svc.Decrement(ctx, "other", "42", "alice")
	assert.False(t, ok)

	items, ok = svc.Decrement(ctx, "r", "42", "alice")
	require.True(t, ok)
	assert.Equal(t, 1, items[0].Quantity)

	items, ok = svc.Decrement(ctx, "r", "42", "alice")
	require.True(t, ok)
	assert.Empty(t, items)
	assert.NotNil(t, items)
}

// quantity never goes negative and the line is absent exactly when the
// running net count has dropped to zero
func TestIncrementDecrementProperty(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 200; run++ {
		svc := NewCartService()
		_, _ = svc.Add(ctx, "r", silkSaree, "alice")
		expected := 1

		for step := 0; step < 30; step++ {
			if rng.Intn(2) == 0 {
				_, ok := svc.Increment(ctx, "r", "42", "alice")
				if expected > 0 {
					assert.True(t, ok)
					expected++
				} else {
					assert.False(t, ok)
				}
			} else {
				_, ok := svc.Decrement(ctx, "r", "42", "alice")
				if expected > 0 {
					assert.True(t, ok)
					expected--
				} else {
					assert.False(t, ok)
				}
			}

			items := svc.Snapshot(ctx, "r")
			if expected <= 0 {
				require.Empty(t, items)
			} else {
				require.Len(t, items, 1)
				require.Equal(t, expected, items[0].Quantity)
				require.GreaterOrEqual(t, items[0].Quantity, 1)
			}
		}
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	svc := NewCartService()
	other := model.Product{ID: "7", Name: "Jhumka"}

	_, _ = svc.Add(ctx, "r", silkSaree, "alice")
	_, _ = svc.Add(ctx, "r", silkSaree, "bob")
	_, _ = svc.Add(ctx, "r", other, "bob")

	items, ok := svc.Remove(ctx, "r", "42")
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, model.ProductID("7"), items[0].ID)

	_, ok = svc.Remove(ctx, "nope", "42")
	assert.False(t, ok)
}

func TestRoomsAreIsolated(t *testing.T) {
	ctx := context.Background()
	svc := NewCartService()
	_, _ = svc.Add(ctx, "a", silkSaree, "alice")

	assert.Empty(t, svc.Snapshot(ctx, "b"))
	assert.Len(t, svc.Snapshot(ctx, "a"), 1)
}

func TestSnapshotIsCopy(t *testing.T) {
	ctx := context.Background()
	svc := NewCartService()
	items, _ := svc.Add(ctx, "r", silkSaree, "alice")
	items[0].Quantity = 99

	assert.Equal(t, 1, svc.Snapshot(ctx, "r")[0].Quantity)
}

func TestConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	svc := NewCartService()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Add(ctx, "r", silkSaree, "alice")
		}()
	}
	wg.Wait()

	items := svc.Snapshot(ctx, "r")
	require.Len(t, items, 1)
	assert.Equal(t, 50, items[0].Quantity)
}
