// Package ingest turns biometric device exports into scan rows and
// chains the automatic reprocess that follows an upload.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shiftsync/attendance-engine/internal/domain/attendance"
	"github.com/shiftsync/attendance-engine/internal/domain/scan"
)

// timestampLayouts are the formats the supported device families emit.
// Tried in order; the first parse wins.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
}

// Result summarizes one export file.
type Result struct {
	Inserted   int      `json:"inserted"`
	Duplicates int      `json:"duplicates"`
	BadLines   []string `json:"bad_lines,omitempty"`
	From       string   `json:"from,omitempty"`
	To         string   `json:"to,omitempty"`
}

type Service struct {
	scanRepo   scan.ScanRepository
	reconciler attendance.ReconciliationService
	loc        *time.Location
}

// NewService builds the ingestion pipeline. reconciler may be nil when
// the caller wants parse-and-store only (e.g. backfilling history before
// a single big reprocess).
func NewService(scanRepo scan.ScanRepository, reconciler attendance.ReconciliationService, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{scanRepo: scanRepo, reconciler: reconciler, loc: loc}
}

// IngestFile parses a device CSV export (raw_name, timestamp, site_id per
// line) and stores the scans. Duplicate punches are counted, bad lines
// reported, and neither aborts the file: one corrupt row must not lose a
// day of punches.
func (s *Service) IngestFile(ctx context.Context, f io.Reader) (Result, error) {
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var result Result
	var records []scan.Record
	var earliest, latest time.Time

	line := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.BadLines = append(result.BadLines, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		if line == 1 && isHeader(row) {
			continue
		}
		rec, err := s.parseRow(row)
		if err != nil {
			result.BadLines = append(result.BadLines, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		records = append(records, rec)
		if earliest.IsZero() || rec.Timestamp.Before(earliest) {
			earliest = rec.Timestamp
		}
		if rec.Timestamp.After(latest) {
			latest = rec.Timestamp
		}
	}

	if len(records) == 0 {
		return result, nil
	}

	inserted, err := s.scanRepo.BulkInsert(ctx, records)
	if err != nil {
		return result, fmt.Errorf("failed to store scans: %w", err)
	}
	result.Inserted = inserted
	result.Duplicates = len(records) - inserted
	result.From = earliest.Format("2006-01-02")
	result.To = latest.Format("2006-01-02")

	slog.Info("Device export ingested",
		"inserted", result.Inserted,
		"duplicates", result.Duplicates,
		"bad_lines", len(result.BadLines),
		"from", result.From,
		"to", result.To)
	return result, nil
}

// IngestAndReprocess runs IngestFile and then reconciles the covered
// span through the same Reprocess boundary manual triggers use, so the
// post-upload pipeline observes identical idempotency and guard rules.
func (s *Service) IngestAndReprocess(ctx context.Context, f io.Reader) (Result, attendance.ReprocessResult, error) {
	result, err := s.IngestFile(ctx, f)
	if err != nil {
		return result, attendance.ReprocessResult{}, err
	}
	if s.reconciler == nil || result.From == "" {
		return result, attendance.ReprocessResult{}, nil
	}

	from, _ := time.ParseInLocation("2006-01-02", result.From, s.loc)
	to, _ := time.ParseInLocation("2006-01-02", result.To, s.loc)
	// The last covered day may be the tail of an overnight shift that
	// started the day before the file begins.
	from = from.AddDate(0, 0, -1)

	runResult, err := s.reconciler.Reprocess(ctx, attendance.ReprocessRequest{
		From: from,
		To:   to,
	})
	if err != nil {
		return result, runResult, fmt.Errorf("post-ingestion reprocess failed: %w", err)
	}
	return result, runResult, nil
}

func (s *Service) parseRow(row []string) (scan.Record, error) {
	if len(row) < 3 {
		return scan.Record{}, fmt.Errorf("expected 3 fields, got %d", len(row))
	}
	rawName := strings.TrimSpace(row[0])
	if rawName == "" {
		return scan.Record{}, fmt.Errorf("empty employee name")
	}
	ts, err := s.parseTimestamp(strings.TrimSpace(row[1]))
	if err != nil {
		return scan.Record{}, err
	}
	siteID := strings.TrimSpace(row[2])
	if siteID == "" {
		return scan.Record{}, fmt.Errorf("empty site id")
	}
	return scan.Record{RawName: rawName, Timestamp: ts, SiteID: siteID}, nil
}

func (s *Service) parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, raw, s.loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func isHeader(row []string) bool {
	if len(row) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(row[0]))
	return first == "name" || first == "employee" || first == "raw_name" || first == "employee_name"
}
