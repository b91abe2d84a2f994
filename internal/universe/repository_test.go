package universe

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vigil/internal/database"
	"github.com/aristath/vigil/internal/domain"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "universe.db"),
		Profile: database.ProfileStandard,
		Name:    "universe-test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := NewRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, err)
	return repo
}

func TestUpsertAndGet(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Upsert(domain.Security{
		Symbol: "aapl", Name: "Apple", Sector: "Tech", Active: true,
	}))

	got, err := repo.GetBySymbol("AAPL")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "AAPL", got.Symbol) // stored normalized
	assert.Equal(t, "Apple", got.Name)
	assert.True(t, got.Active)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestUpsertUpdatesExisting(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Upsert(domain.Security{Symbol: "MSFT", Name: "Microsoft", Sector: "Tech", Active: true}))
	require.NoError(t, repo.Upsert(domain.Security{Symbol: "MSFT", Name: "Microsoft Corp", Sector: "Tech", Active: false}))

	got, err := repo.GetBySymbol("MSFT")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Microsoft Corp", got.Name)
	assert.False(t, got.Active)

	total, active, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 0, active)
}

func TestUpsertEmptySymbol(t *testing.T) {
	repo := newTestRepository(t)
	assert.Error(t, repo.Upsert(domain.Security{Symbol: "  "}))
}

func TestSeedPreservesExistingRows(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Upsert(domain.Security{Symbol: "XOM", Name: "Edited Name", Sector: "Energy", Active: true}))
	require.NoError(t, repo.Seed([]domain.Security{
		{Symbol: "XOM", Name: "Exxon Mobil", Sector: "Energy", Active: true},
		{Symbol: "CVX", Name: "Chevron", Sector: "Energy", Active: true},
	}))

	xom, err := repo.GetBySymbol("XOM")
	require.NoError(t, err)
	assert.Equal(t, "Edited Name", xom.Name, "seed must not overwrite existing rows")

	cvx, err := repo.GetBySymbol("CVX")
	require.NoError(t, err)
	require.NotNil(t, cvx)
}

func TestGetAllActive(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Seed([]domain.Security{
		{Symbol: "BBB", Name: "B", Sector: "Tech", Active: true},
		{Symbol: "AAA", Name: "A", Sector: "Tech", Active: true},
		{Symbol: "ZZZ", Name: "Z", Sector: "Tech", Active: false},
	}))

	active, err := repo.GetAllActive()
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "AAA", active[0].Symbol) // ordered by symbol
	assert.Equal(t, "BBB", active[1].Symbol)
}

func TestSetActive(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Upsert(domain.Security{Symbol: "NVDA", Name: "Nvidia", Sector: "Tech", Active: true}))
	require.NoError(t, repo.SetActive("NVDA", false))

	got, err := repo.GetBySymbol("NVDA")
	require.NoError(t, err)
	assert.False(t, got.Active)

	assert.Error(t, repo.SetActive("MISSING", true))
}

func TestGetBySymbolNotFound(t *testing.T) {
	repo := newTestRepository(t)
	got, err := repo.GetBySymbol("NOPE")
	require.NoError(t, err)
	assert.Nil(t, got)
}
