package audit

import (
	"context"
	"fmt"
	"os"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
)

// exportRow is the Parquet row shape for exported audit events. Timestamps
// are exported as unix milliseconds.
type exportRow struct {
	OccurredAt int64   `parquet:"occurred_at"`
	RequestID  string  `parquet:"request_id"`
	Operation  string  `parquet:"operation"`
	MapID      string  `parquet:"map_id"`
	TokenCount int32   `parquet:"token_count"`
	Strategy   string  `parquet:"strategy"`
	DurationMS float64 `parquet:"duration_ms"`
}

// ExportParquet writes every recorded audit event to a Parquet file at path
// and returns the number of rows written.
func (s *Store) ExportParquet(ctx context.Context, path string) (int, error) {
	events, err := s.All(ctx)
	if err != nil {
		return 0, err
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[exportRow](file)

	rows := make([]exportRow, len(events))
	for i, event := range events {
		rows[i] = exportRow{
			OccurredAt: event.OccurredAt.UnixMilli(),
			RequestID:  event.RequestID,
			Operation:  event.Operation,
			MapID:      event.MapID,
			TokenCount: int32(event.TokenCount),
			Strategy:   event.Strategy,
			DurationMS: event.DurationMS,
		}
	}

	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			writer.Close()
			return 0, fmt.Errorf("failed to write export rows: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize export file: %w", err)
	}

	s.logger.Info("Audit trail exported",
		zap.String("path", path),
		zap.Int("rows", len(rows)),
	)

	return len(rows), nil
}
