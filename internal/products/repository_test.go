package product

import (
	"context"
	"testing"

	"github.com/angelmondragon/shopcart-backend/pkg/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryFindByID(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))

	created, err := repo.CreateProduct(ctx, &models.Product{Name: "Desk Lamp", PriceCents: 1000})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	found, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Desk Lamp", found.Name)
	assert.EqualValues(t, 1000, found.PriceCents)

	missing, err := repo.FindByID(ctx, created.ID+100)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepositoryFindByIDs(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))

	lamp, err := repo.CreateProduct(ctx, &models.Product{Name: "Lamp", PriceCents: 1000})
	require.NoError(t, err)
	mug, err := repo.CreateProduct(ctx, &models.Product{Name: "Mug", PriceCents: 450})
	require.NoError(t, err)

	found, err := repo.FindByIDs(ctx, []int64{lamp.ID, mug.ID, 999})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Lamp", found[lamp.ID].Name)
	assert.Equal(t, "Mug", found[mug.ID].Name)

	empty, err := repo.FindByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRepositoryRejectsNegativePrice(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	_, err := repo.CreateProduct(context.Background(), &models.Product{Name: "Broken", PriceCents: -1})
	assert.Error(t, err)
}

func TestRepositoryRejectsDuplicateName(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))
	_, err := repo.CreateProduct(ctx, &models.Product{Name: "Lamp", PriceCents: 1})
	require.NoError(t, err)
	_, err = repo.CreateProduct(ctx, &models.Product{Name: "Lamp", PriceCents: 2})
	assert.Error(t, err)
}
