package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/poolhouse/poolbet/internal/domain"
)

// SettlementArchiver implements domain.SettlementArchiver by serializing
// each settlement report to JSON and uploading it under a date-partitioned
// key. The bet and wallet rows remain the source of truth; the archive
// exists for audit and dispute handling.
type SettlementArchiver struct {
	writer domain.BlobWriter
	prefix string
}

// NewSettlementArchiver creates an archiver writing under prefix
// (default "settlements").
func NewSettlementArchiver(writer domain.BlobWriter, prefix string) *SettlementArchiver {
	if prefix == "" {
		prefix = "settlements"
	}
	return &SettlementArchiver{writer: writer, prefix: prefix}
}

// ArchiveSettlement uploads one report to
// <prefix>/<YYYY-MM-DD>/<market-id>.json.
func (a *SettlementArchiver) ArchiveSettlement(ctx context.Context, report domain.SettlementReport) error {
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: marshal settlement report: %w", err)
	}

	key := fmt.Sprintf("%s/%s/%s.json",
		a.prefix, report.SettledAt.UTC().Format("2006-01-02"), report.MarketID)

	if err := a.writer.Put(ctx, key, bytes.NewReader(payload), "application/json"); err != nil {
		return fmt.Errorf("s3blob: archive settlement %s: %w", report.MarketID, err)
	}
	return nil
}

var _ domain.SettlementArchiver = (*SettlementArchiver)(nil)
