package scoring

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vigil/internal/config"
)

func TestExportWritesAllReports(t *testing.T) {
	dir := t.TempDir()
	scorer := NewScorer(config.DefaultScoringWeights(), zerolog.Nop())
	scored := scorer.ScoreAll([]Input{
		scoringInput("AAA", "Tech", 0.8),
		scoringInput("BBB", "Energy", 0.4),
	}, calmRegime())

	runDate := time.Date(2025, 7, 15, 2, 0, 0, 0, time.UTC)
	summaryPath, err := NewExporter(dir, zerolog.Nop()).Export(runDate, scored, calmRegime())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "summary_2025-07-15.json"), summaryPath)

	// Per-symbol CSV
	f, err := os.Open(filepath.Join(dir, "opportunities_2025-07-15.csv"))
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3) // header + 2 rows
	assert.Equal(t, "symbol", records[0][0])
	assert.Contains(t, records[0], "sector_momentum")

	// Per-sector CSV
	sf, err := os.Open(filepath.Join(dir, "sectors_2025-07-15.csv"))
	require.NoError(t, err)
	defer sf.Close()
	sectorRecords, err := csv.NewReader(sf).ReadAll()
	require.NoError(t, err)
	require.Len(t, sectorRecords, 3) // header + Tech + Energy

	// JSON summary
	data, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	var summary RunSummary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, "2025-07-15", summary.RunDate)
	assert.Equal(t, 2, summary.Opportunities)
	assert.Len(t, summary.TopSymbols, 2)
	assert.Len(t, summary.Sectors, 2)
}

func TestExportEmptyUniverse(t *testing.T) {
	dir := t.TempDir()
	runDate := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)

	summaryPath, err := NewExporter(dir, zerolog.Nop()).Export(runDate, nil, calmRegime())
	require.NoError(t, err)

	data, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	var summary RunSummary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Zero(t, summary.Opportunities)
	assert.Empty(t, summary.TopSymbols)
}

func TestExportCreatesReportsDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	_, err := NewExporter(dir, zerolog.Nop()).Export(time.Now(), nil, calmRegime())
	require.NoError(t, err)
	_, err = os.Stat(dir)
	assert.NoError(t, err)
}
