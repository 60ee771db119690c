package s3blob

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/poolhouse/poolbet/internal/domain"
)

type capturedPut struct {
	path        string
	contentType string
	data        []byte
}

type mockWriter struct {
	puts []capturedPut
}

func (m *mockWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.puts = append(m.puts, capturedPut{path: path, contentType: contentType, data: b})
	return nil
}

func TestArchiveSettlement(t *testing.T) {
	w := &mockWriter{}
	a := NewSettlementArchiver(w, "")

	report := domain.SettlementReport{
		MarketID:       "abc-123",
		EventID:        "evt-1",
		MarketName:     "Match Result",
		WinningOutcome: "Home Win",
		TotalPool:      decimal.NewFromInt(30),
		WinningPool:    decimal.NewFromInt(10),
		LosingPool:     decimal.NewFromInt(20),
		SettledAt:      time.Date(2026, 3, 14, 22, 45, 0, 0, time.UTC),
	}
	if err := a.ArchiveSettlement(context.Background(), report); err != nil {
		t.Fatalf("ArchiveSettlement: %v", err)
	}

	if len(w.puts) != 1 {
		t.Fatalf("got %d uploads, want 1", len(w.puts))
	}
	put := w.puts[0]
	if put.path != "settlements/2026-03-14/abc-123.json" {
		t.Errorf("key = %q", put.path)
	}
	if put.contentType != "application/json" {
		t.Errorf("content type = %q", put.contentType)
	}

	var decoded domain.SettlementReport
	if err := json.Unmarshal(put.data, &decoded); err != nil {
		t.Fatalf("uploaded payload is not valid JSON: %v", err)
	}
	if decoded.MarketID != report.MarketID || decoded.WinningOutcome != report.WinningOutcome {
		t.Errorf("decoded report = %+v", decoded)
	}
}
