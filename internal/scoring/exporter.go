package scoring

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vigil/internal/config"
	"github.com/aristath/vigil/internal/domain"
)

// Exporter writes the run reports: a per-symbol CSV, a per-sector CSV and
// a JSON summary, all keyed by run date in the reports directory.
type Exporter struct {
	reportsDir string
	log        zerolog.Logger
}

// NewExporter creates an exporter rooted at reportsDir
func NewExporter(reportsDir string, log zerolog.Logger) *Exporter {
	return &Exporter{
		reportsDir: reportsDir,
		log:        log.With().Str("component", "report_exporter").Logger(),
	}
}

// RunSummary is the JSON summary document for one run
type RunSummary struct {
	RunDate       string                 `json:"run_date"`
	GeneratedAt   time.Time              `json:"generated_at"`
	Regime        domain.RegimeResult    `json:"regime"`
	Opportunities int                    `json:"opportunities"`
	TopSymbols    []string               `json:"top_symbols"`
	Sectors       []domain.SectorSummary `json:"sectors"`
}

// Export writes all three report files and returns the path of the JSON
// summary, which doubles as the notification report path.
func (e *Exporter) Export(runDate time.Time, opportunities []domain.ScoredOpportunity, regime domain.RegimeResult) (string, error) {
	if err := os.MkdirAll(e.reportsDir, 0o755); err != nil {
		return "", fmt.Errorf("creating reports dir: %w", err)
	}
	dateKey := runDate.Format("2006-01-02")

	rows := BuildRows(opportunities)
	sectors := SummarizeSectors(rows)

	if err := e.writeSymbolCSV(dateKey, rows); err != nil {
		return "", err
	}
	if err := e.writeSectorCSV(dateKey, sectors); err != nil {
		return "", err
	}
	summaryPath, err := e.writeSummary(dateKey, opportunities, sectors, regime)
	if err != nil {
		return "", err
	}

	e.log.Info().Str("date", dateKey).Int("rows", len(rows)).Msg("Reports written")
	return summaryPath, nil
}

func (e *Exporter) writeSymbolCSV(dateKey string, rows []Row) error {
	path := filepath.Join(e.reportsDir, fmt.Sprintf("opportunities_%s.csv", dateKey))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating symbol report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"symbol", "name", "sector", "opportunity_score", "signal", "confidence_pct"}
	header = append(header, config.SubScoreNames()...)
	header = append(header, "market_beta", "adjustment_count")
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing symbol header: %w", err)
	}

	for _, r := range rows {
		record := []string{
			r.Symbol, r.Name, r.Sector,
			formatFloat(r.Score),
			string(r.Signal),
			formatFloat(r.ConfidencePct),
		}
		for _, name := range config.SubScoreNames() {
			record = append(record, formatFloat(r.SubScores[name]))
		}
		marketBeta, _ := r.Betas.Beta("market")
		record = append(record, formatFloat(marketBeta), strconv.Itoa(r.AdjustmentCount))
		if err := w.Write(record); err != nil {
			return fmt.Errorf("writing symbol row %s: %w", r.Symbol, err)
		}
	}
	w.Flush()
	return w.Error()
}

func (e *Exporter) writeSectorCSV(dateKey string, sectors []domain.SectorSummary) error {
	path := filepath.Join(e.reportsDir, fmt.Sprintf("sectors_%s.csv", dateKey))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating sector report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"sector", "count", "avg_opportunity_score", "avg_market_beta", "buy_count", "sell_count", "hold_count"}); err != nil {
		return fmt.Errorf("writing sector header: %w", err)
	}
	for _, s := range sectors {
		marketBeta, _ := s.AvgBetas.Beta("market")
		record := []string{
			s.Sector,
			strconv.Itoa(s.Count),
			formatFloat(s.AvgScore),
			formatFloat(marketBeta),
			strconv.Itoa(s.BuyCount),
			strconv.Itoa(s.SellCount),
			strconv.Itoa(s.HoldCount),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("writing sector row %s: %w", s.Sector, err)
		}
	}
	w.Flush()
	return w.Error()
}

func (e *Exporter) writeSummary(dateKey string, opportunities []domain.ScoredOpportunity, sectors []domain.SectorSummary, regime domain.RegimeResult) (string, error) {
	top := make([]string, 0, 10)
	for i, o := range opportunities {
		if i >= 10 {
			break
		}
		top = append(top, o.Symbol)
	}

	summary := RunSummary{
		RunDate:       dateKey,
		GeneratedAt:   time.Now().UTC(),
		Regime:        regime,
		Opportunities: len(opportunities),
		TopSymbols:    top,
		Sectors:       sectors,
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling summary: %w", err)
	}

	path := filepath.Join(e.reportsDir, fmt.Sprintf("summary_%s.json", dateKey))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing summary: %w", err)
	}
	return path, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
