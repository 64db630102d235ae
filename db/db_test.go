package db

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monitor-pricewatch/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(context.Background(), DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func nd(s string) decimal.NullDecimal {
	if s == "" {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestNewDBUnsupportedDriver(t *testing.T) {
	_, err := NewDB(context.Background(), "oracle", "")
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	done, err := db.CreateRun(ctx, "20240315")
	require.NoError(t, err)
	require.Len(t, done.ID, 36)

	require.NoError(t, db.CompleteRun(ctx, done.ID, models.Summary{
		TotalProducts: 4, TotalOffendingProducts: 2, TotalDeviatedProducts: 3, TotalUndetermined: 1,
		ComplianceRate: decimal.RequireFromString("25"),
	}))

	failed, err := db.CreateRun(ctx, "20240316")
	require.NoError(t, err)
	require.NoError(t, db.FailRun(ctx, failed.ID, errors.New("snapshot missing")))

	runs, err := db.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byID := make(map[string]Run)
	for _, r := range runs {
		byID[r.ID] = r
	}

	got := byID[done.ID]
	assert.Equal(t, RunDone, got.Status)
	assert.Equal(t, "20240315", got.SnapshotDate)
	assert.Equal(t, 4, got.TotalProducts)
	assert.Equal(t, 1, got.Undetermined)
	require.True(t, got.ComplianceRate.Valid)
	assert.True(t, decimal.RequireFromString("25").Equal(got.ComplianceRate.Decimal))
	assert.True(t, got.FinishedAt.Valid)

	got = byID[failed.ID]
	assert.Equal(t, RunFailed, got.Status)
	assert.Equal(t, "snapshot missing", got.LastError.String)
	assert.False(t, got.ComplianceRate.Valid)

	limited, err := db.RecentRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSaveComparisons(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	run, err := db.CreateRun(ctx, "20240315")
	require.NoError(t, err)

	rows := []models.ReconciledRow{
		{Product: "Dell P2422H", Retailer: "newegg", RetailerSKU: "NE2", ManufacturerPrice: decimal.RequireFromString("200"), Status: models.StatusUndetermined},
		{Product: "Dell S2721H", Retailer: "bestbuy", RetailerSKU: "BB1", ManufacturerPrice: decimal.RequireFromString("200"),
			RetailerPrice: nd("190"), PriceDifference: nd("-10"), Deviation: nd("-5"), Status: models.StatusNeedsAttention},
		{Product: "Dell U2723QE", Retailer: "bestbuy", RetailerSKU: "BB3", ManufacturerPrice: decimal.RequireFromString("200"),
			RetailerPrice: nd("205"), PriceDifference: nd("5"), Deviation: nd("2.5"), Status: models.StatusCompliant},
	}
	require.NoError(t, db.SaveComparisons(ctx, run.ID, rows))

	got, err := db.GetComparisons(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "Dell S2721H", got[0].Product)
	assert.True(t, decimal.RequireFromString("-5").Equal(got[0].Deviation.Decimal))
	assert.True(t, decimal.RequireFromString("190").Equal(got[0].RetailerPrice.Decimal))
	assert.Equal(t, models.StatusNeedsAttention, got[0].Status)

	assert.Equal(t, "Dell U2723QE", got[1].Product)
	assert.True(t, decimal.RequireFromString("2.5").Equal(got[1].Deviation.Decimal))

	assert.Equal(t, "Dell P2422H", got[2].Product)
	assert.False(t, got[2].Deviation.Valid)
	assert.False(t, got[2].RetailerPrice.Valid)

	other, err := db.GetComparisons(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, other)
}
