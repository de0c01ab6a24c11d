package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

func setupInventoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schemas := []string{
		`CREATE TABLE users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  password_hash TEXT NOT NULL DEFAULT '',
  full_name TEXT NOT NULL DEFAULT '',
  phone TEXT,
  role TEXT NOT NULL DEFAULT 'buyer',
  rider_status TEXT NOT NULL DEFAULT 'pending',
  is_online INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  last_latitude REAL,
  last_longitude REAL,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE shops (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  name TEXT NOT NULL,
  email TEXT,
  phone TEXT,
  address TEXT,
  latitude REAL,
  longitude REAL,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE products (
  id TEXT PRIMARY KEY,
  shop_id TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE pricing_units (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  label TEXT NOT NULL,
  price TEXT NOT NULL DEFAULT '0',
  stock INTEGER,
  low_stock_threshold INTEGER NOT NULL DEFAULT 5,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE stock_histories (
  id TEXT PRIMARY KEY,
  pricing_unit_id TEXT NOT NULL,
  order_id TEXT,
  change_type TEXT NOT NULL,
  previous_stock INTEGER,
  new_stock INTEGER,
  delta INTEGER NOT NULL,
  notes TEXT,
  created_at DATETIME
);`,
	}
	for _, schema := range schemas {
		require.NoError(t, db.Exec(schema).Error)
	}
	return db
}

func seedUnit(t *testing.T, db *gorm.DB, stock *int) (uuid.UUID, uuid.UUID, uuid.UUID) {
	t.Helper()

	ownerID := uuid.New()
	shopID := uuid.New()
	productID := uuid.New()
	unitID := uuid.New()

	require.NoError(t, db.Exec(
		`INSERT INTO users (id, email) VALUES (?, ?)`, ownerID.String(), "owner@example.com").Error)
	require.NoError(t, db.Exec(
		`INSERT INTO shops (id, owner_id, name) VALUES (?, ?, ?)`, shopID.String(), ownerID.String(), "Mile 12 Grains").Error)
	require.NoError(t, db.Exec(
		`INSERT INTO products (id, shop_id, name) VALUES (?, ?, ?)`, productID.String(), shopID.String(), "Ofada Rice").Error)
	require.NoError(t, db.Exec(
		`INSERT INTO pricing_units (id, product_id, label, price, stock, low_stock_threshold) VALUES (?, ?, ?, ?, ?, ?)`,
		unitID.String(), productID.String(), "50kg bag", "41000", stock, 5).Error)

	return ownerID, productID, unitID
}

func TestRepoUpdateStockAndHistory(t *testing.T) {
	db := setupInventoryTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	stock := 12
	_, _, unitID := seedUnit(t, db, &stock)

	unit, err := repo.FindPricingUnit(ctx, unitID)
	require.NoError(t, err)
	require.NotNil(t, unit.Stock)
	assert.Equal(t, 12, *unit.Stock)

	require.NoError(t, repo.UpdateStock(ctx, unitID, 9))

	unit, err = repo.FindPricingUnit(ctx, unitID)
	require.NoError(t, err)
	assert.Equal(t, 9, *unit.Stock)

	prev, next := 12, 9
	entry := &models.StockHistory{
		ID:            uuid.New(),
		PricingUnitID: unitID,
		ChangeType:    enums.StockChangeTypeOrderPlaced,
		PreviousStock: &prev,
		NewStock:      &next,
		Delta:         -3,
	}
	require.NoError(t, repo.CreateStockHistory(ctx, entry))

	var count int64
	require.NoError(t, db.Table("stock_histories").Where("pricing_unit_id = ?", unitID.String()).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRepoFindLowStockContext(t *testing.T) {
	db := setupInventoryTestDB(t)
	repo := NewRepository(db)

	stock := 3
	ownerID, productID, unitID := seedUnit(t, db, &stock)

	info, err := repo.FindLowStockContext(context.Background(), unitID)
	require.NoError(t, err)

	assert.Equal(t, ownerID, info.OwnerID)
	assert.Equal(t, productID, info.ProductID)
	assert.Equal(t, "Ofada Rice", info.ProductName)
	assert.Equal(t, "50kg bag", info.UnitLabel)
	assert.Equal(t, "Mile 12 Grains", info.ShopName)
}

func TestRepoFindPricingUnitNotFound(t *testing.T) {
	db := setupInventoryTestDB(t)
	repo := NewRepository(db)

	_, err := repo.FindPricingUnit(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
