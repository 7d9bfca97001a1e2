package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"goldtracer/internal/domain"
)

// Compile-time interface check.
var _ HistoryExporter = (*ParquetStore)(nil)

// ParquetStore writes history exports as Parquet files on disk.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// HistoryRecord is the Parquet schema for one history day. Absent values are
// stored as nulls.
type HistoryRecord struct {
	LogDate            string   `parquet:"log_date"`
	NominalYield       *float64 `parquet:"nominal_yield,optional"`
	RealYield          *float64 `parquet:"real_yield,optional"`
	BreakevenInflation *float64 `parquet:"breakeven_inflation,optional"`
}

// ExportHistory writes points to <DataDir>/history/<range>/<YYYY-MM-DD>.parquet,
// replacing any export of the same range on the same day.
func (s *ParquetStore) ExportHistory(_ context.Context, r domain.HistoryRange, points []domain.HistoryPoint, at time.Time) (string, error) {
	path := s.historyPath(r, at)
	if err := WriteHistoryFile(path, points); err != nil {
		return "", fmt.Errorf("writing %s history: %w", r, err)
	}
	return path, nil
}

// historyPath returns the export path for a range.
// Layout: <dataDir>/history/<range>/<YYYY-MM-DD>.parquet
func (s *ParquetStore) historyPath(r domain.HistoryRange, at time.Time) string {
	return filepath.Join(s.DataDir, "history", string(r), at.Format("2006-01-02")+".parquet")
}

// WriteHistoryFile writes points to path, sorted by date.
func WriteHistoryFile(path string, points []domain.HistoryPoint) error {
	records := make([]HistoryRecord, 0, len(points))
	for _, p := range points {
		records = append(records, HistoryRecord{
			LogDate:            p.LogDate,
			NominalYield:       floatPtr(p.NominalYield),
			RealYield:          floatPtr(p.RealYield),
			BreakevenInflation: floatPtr(p.BreakevenInflation),
		})
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].LogDate < records[j].LogDate
	})
	return writeParquetFile(path, records)
}

// ReadHistoryFile reads an export back into history points.
func ReadHistoryFile(path string) ([]domain.HistoryPoint, error) {
	records, err := readParquetFile[HistoryRecord](path)
	if err != nil {
		return nil, err
	}
	points := make([]domain.HistoryPoint, 0, len(records))
	for _, r := range records {
		points = append(points, domain.HistoryPoint{
			LogDate:            r.LogDate,
			NominalYield:       numberOf(r.NominalYield),
			RealYield:          numberOf(r.RealYield),
			BreakevenInflation: numberOf(r.BreakevenInflation),
		})
	}
	return points, nil
}

func floatPtr(n domain.Number) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float()
	return &f
}

func numberOf(f *float64) domain.Number {
	if f == nil {
		return domain.Number{}
	}
	return domain.NumberOf(*f)
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
