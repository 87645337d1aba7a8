// ================================
// File: internal/export/export.go
// ================================
// Package export writes price history and route decisions to CSV or
// JSON snapshot files. Files appear atomically: content is staged in
// a temp file and renamed into place, so a watcher never reads a
// half-written export.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"uusd-router/internal/history"
	"uusd-router/internal/storage/models"
)

// Format represents the export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Options configures the export behavior.
type Options struct {
	Format    Format
	StartTime time.Time
	EndTime   time.Time
	OutputDir string
}

// Exporter writes snapshot files for the engine's observations.
type Exporter struct {
	logger *zap.Logger
}

// NewExporter creates a new exporter.
func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{logger: logger.Named("export")}
}

// ExportPriceHistory writes a price series snapshot and returns the
// file path.
func (e *Exporter) ExportPriceHistory(points []history.PriceDataPoint, opts Options) (string, error) {
	filtered := filterPoints(points, opts)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no price points match the export criteria")
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Timestamp < filtered[j].Timestamp
	})

	outputPath := filepath.Join(opts.OutputDir, timestampedName("prices", opts.Format))
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	switch opts.Format {
	case FormatCSV:
		err = writeAtomic(outputPath, func(w io.Writer) error {
			return writePointsCSV(w, filtered)
		})
	case FormatJSON:
		err = writeAtomic(outputPath, func(w io.Writer) error {
			return writePointsJSON(w, filtered)
		})
	default:
		err = fmt.Errorf("unsupported format: %s", opts.Format)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("Price history exported",
		zap.String("file", outputPath),
		zap.Int("points", len(filtered)),
		zap.String("format", string(opts.Format)))

	return outputPath, nil
}

// ExportRouteAudits writes a route decision snapshot and returns the
// file path.
func (e *Exporter) ExportRouteAudits(audits []*models.RouteAudit, opts Options) (string, error) {
	filtered := filterAudits(audits, opts)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no route decisions match the export criteria")
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].ObservedAt.Before(filtered[j].ObservedAt)
	})

	outputPath := filepath.Join(opts.OutputDir, timestampedName("routes", opts.Format))
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	switch opts.Format {
	case FormatCSV:
		err = writeAtomic(outputPath, func(w io.Writer) error {
			return writeAuditsCSV(w, filtered)
		})
	case FormatJSON:
		err = writeAtomic(outputPath, func(w io.Writer) error {
			return writeAuditsJSON(w, filtered)
		})
	default:
		err = fmt.Errorf("unsupported format: %s", opts.Format)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("Route audits exported",
		zap.String("file", outputPath),
		zap.Int("decisions", len(filtered)),
		zap.String("format", string(opts.Format)))

	return outputPath, nil
}

func filterPoints(points []history.PriceDataPoint, opts Options) []history.PriceDataPoint {
	var filtered []history.PriceDataPoint
	for _, p := range points {
		ts := time.Unix(int64(p.Timestamp), 0)
		if !opts.StartTime.IsZero() && ts.Before(opts.StartTime) {
			continue
		}
		if !opts.EndTime.IsZero() && ts.After(opts.EndTime) {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered
}

func filterAudits(audits []*models.RouteAudit, opts Options) []*models.RouteAudit {
	var filtered []*models.RouteAudit
	for _, a := range audits {
		if !opts.StartTime.IsZero() && a.ObservedAt.Before(opts.StartTime) {
			continue
		}
		if !opts.EndTime.IsZero() && a.ObservedAt.After(opts.EndTime) {
			continue
		}
		filtered = append(filtered, a)
	}
	return filtered
}

func timestampedName(prefix string, format Format) string {
	return fmt.Sprintf("%s_%s.%s", prefix, time.Now().Format("20060102_150405"), format)
}

// writeAtomic stages content in a temp file beside the target and
// renames it into place once fully written.
func writeAtomic(outputPath string, write func(io.Writer) error) error {
	dir := filepath.Dir(outputPath)
	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return fmt.Errorf("failed to stage export file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to finish export file: %w", err)
	}

	if err := os.Rename(tmpName, outputPath); err != nil {
		return fmt.Errorf("failed to publish export file: %w", err)
	}
	return nil
}

func writePointsCSV(w io.Writer, points []history.PriceDataPoint) error {
	writer := csv.NewWriter(w)

	headers := []string{"timestamp", "time", "price_usd", "block_number"}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, p := range points {
		record := []string{
			strconv.FormatUint(p.Timestamp, 10),
			time.Unix(int64(p.Timestamp), 0).UTC().Format(time.RFC3339),
			formatPrice(p.PriceUsd),
			strconv.FormatUint(p.BlockNumber, 10),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write price point: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func writePointsJSON(w io.Writer, points []history.PriceDataPoint) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	exportData := struct {
		ExportTime time.Time                `json:"export_time"`
		PointCount int                      `json:"point_count"`
		Summary    PriceSummary             `json:"summary"`
		Points     []history.PriceDataPoint `json:"points"`
	}{
		ExportTime: time.Now().UTC(),
		PointCount: len(points),
		Summary:    summarizePoints(points),
		Points:     points,
	}

	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func writeAuditsCSV(w io.Writer, audits []*models.RouteAudit) error {
	writer := csv.NewWriter(w)

	headers := []string{
		"observed_at", "direction", "route", "input_amount",
		"expected_output", "savings_bps", "disabled_reason", "elapsed_ms",
	}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, a := range audits {
		record := []string{
			a.ObservedAt.UTC().Format(time.RFC3339),
			a.Direction,
			a.Route,
			a.InputAmount,
			a.ExpectedOutput,
			strconv.FormatUint(a.SavingsBps, 10),
			a.DisabledReason,
			strconv.FormatFloat(a.ElapsedMs, 'f', 3, 64),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write route decision: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeAuditsJSON(w io.Writer, audits []*models.RouteAudit) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	records := make([]auditRecord, 0, len(audits))
	for _, a := range audits {
		records = append(records, auditRecord{
			ObservedAt:     a.ObservedAt.UTC(),
			Direction:      a.Direction,
			Route:          a.Route,
			InputAmount:    a.InputAmount,
			ExpectedOutput: a.ExpectedOutput,
			SavingsBps:     a.SavingsBps,
			DisabledReason: a.DisabledReason,
			ElapsedMs:      a.ElapsedMs,
		})
	}

	exportData := struct {
		ExportTime    time.Time     `json:"export_time"`
		DecisionCount int           `json:"decision_count"`
		Summary       AuditSummary  `json:"summary"`
		Decisions     []auditRecord `json:"decisions"`
	}{
		ExportTime:    time.Now().UTC(),
		DecisionCount: len(audits),
		Summary:       summarizeAudits(audits),
		Decisions:     records,
	}

	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// auditRecord is the JSON form of a route decision.
type auditRecord struct {
	ObservedAt     time.Time `json:"observed_at"`
	Direction      string    `json:"direction"`
	Route          string    `json:"route"`
	InputAmount    string    `json:"input_amount"`
	ExpectedOutput string    `json:"expected_output"`
	SavingsBps     uint64    `json:"savings_bps"`
	DisabledReason string    `json:"disabled_reason,omitempty"`
	ElapsedMs      float64   `json:"elapsed_ms"`
}

// PriceSummary contains summary statistics for an exported series.
type PriceSummary struct {
	Points    int       `json:"points"`
	MinUsd    uint64    `json:"min_usd"`
	MaxUsd    uint64    `json:"max_usd"`
	AvgUsd    uint64    `json:"avg_usd"`
	FirstTime time.Time `json:"first_time"`
	LastTime  time.Time `json:"last_time"`
}

func summarizePoints(points []history.PriceDataPoint) PriceSummary {
	summary := PriceSummary{Points: len(points)}
	if len(points) == 0 {
		return summary
	}

	summary.FirstTime = time.Unix(int64(points[0].Timestamp), 0).UTC()
	summary.LastTime = time.Unix(int64(points[len(points)-1].Timestamp), 0).UTC()
	summary.MinUsd = points[0].PriceUsd
	summary.MaxUsd = points[0].PriceUsd

	var sum uint64
	for _, p := range points {
		if p.PriceUsd < summary.MinUsd {
			summary.MinUsd = p.PriceUsd
		}
		if p.PriceUsd > summary.MaxUsd {
			summary.MaxUsd = p.PriceUsd
		}
		sum += p.PriceUsd
	}
	summary.AvgUsd = sum / uint64(len(points))

	return summary
}

// AuditSummary contains summary statistics for exported decisions.
type AuditSummary struct {
	Decisions     int     `json:"decisions"`
	MintRoutes    int     `json:"mint_routes"`
	RedeemRoutes  int     `json:"redeem_routes"`
	SwapRoutes    int     `json:"swap_routes"`
	Disabled      int     `json:"disabled"`
	AvgSavingsBps float64 `json:"avg_savings_bps"`
	MaxSavingsBps uint64  `json:"max_savings_bps"`
}

func summarizeAudits(audits []*models.RouteAudit) AuditSummary {
	summary := AuditSummary{Decisions: len(audits)}
	if len(audits) == 0 {
		return summary
	}

	var totalBps uint64
	for _, a := range audits {
		switch a.Route {
		case "mint":
			summary.MintRoutes++
		case "redeem":
			summary.RedeemRoutes++
		case "swap":
			summary.SwapRoutes++
		}
		if a.DisabledReason != "" {
			summary.Disabled++
		}
		totalBps += a.SavingsBps
		if a.SavingsBps > summary.MaxSavingsBps {
			summary.MaxSavingsBps = a.SavingsBps
		}
	}
	summary.AvgSavingsBps = float64(totalBps) / float64(len(audits))

	return summary
}

// formatPrice renders a six-decimal USD value without float rounding.
func formatPrice(scaled uint64) string {
	return fmt.Sprintf("%d.%06d", scaled/1_000_000, scaled%1_000_000)
}
