package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/oraclebet/oraclebet/internal/domain"
)

// BlobWriter is the narrow upload contract the archiver needs. *Writer
// satisfies it.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// MarketArchiveStore provides read access to settled markets for archival.
type MarketArchiveStore interface {
	ListByStatus(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error)
}

// PositionArchiveStore provides read access to a market's positions.
type PositionArchiveStore interface {
	ListByMarket(ctx context.Context, marketID string) ([]domain.Position, error)
}

// EventArchiveStore provides read access to old events for archival.
type EventArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Event, error)
}

// MarketRecord is one line of a market archive file: the settled market plus
// every position it ever held, claimed positions included.
type MarketRecord struct {
	Market    domain.Market     `json:"market"`
	Positions []domain.Position `json:"positions"`
}

// Archiver serializes settled markets and old events to JSONL and uploads
// them to blob storage. It never deletes from the primary store; pruning is
// a separate, explicit step run after an archive has been verified.
type Archiver struct {
	writer    BlobWriter
	markets   MarketArchiveStore
	positions PositionArchiveStore
	events    EventArchiveStore
}

// NewArchiver creates an Archiver over the given writer and stores.
func NewArchiver(writer BlobWriter, markets MarketArchiveStore, positions PositionArchiveStore, events EventArchiveStore) *Archiver {
	return &Archiver{
		writer:    writer,
		markets:   markets,
		positions: positions,
		events:    events,
	}
}

// ArchiveSettledMarkets uploads every resolved and cancelled market settled
// before the cutoff, one MarketRecord per JSONL line, to
// archive/markets/YYYY-MM.jsonl. It returns the number of markets archived.
func (a *Archiver) ArchiveSettledMarkets(ctx context.Context, before time.Time) (int64, error) {
	var records []MarketRecord
	for _, status := range []domain.MarketStatus{domain.MarketStatusResolved, domain.MarketStatusCancelled} {
		markets, err := a.markets.ListByStatus(ctx, status, domain.ListOpts{})
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive markets query: %w", err)
		}
		for _, m := range markets {
			if !m.UpdatedAt.Before(before) {
				continue
			}
			positions, err := a.positions.ListByMarket(ctx, m.ID)
			if err != nil {
				return 0, fmt.Errorf("s3blob: archive positions query %s: %w", m.ID, err)
			}
			records = append(records, MarketRecord{Market: m, Positions: positions})
		}
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive markets marshal: %w", err)
	}

	path := archivePath("markets", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive markets upload: %w", err)
	}

	return int64(len(records)), nil
}

// ArchiveEvents uploads every event logged before the cutoff to
// archive/events/YYYY-MM.jsonl and returns the number archived.
func (a *Archiver) ArchiveEvents(ctx context.Context, before time.Time) (int64, error) {
	events, err := a.events.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events query: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(events)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events marshal: %w", err)
	}

	path := archivePath("events", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive events upload: %w", err)
	}

	return int64(len(events)), nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/markets/2026-08.jsonl
//	archive/events/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON, one compact
// line per record.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
