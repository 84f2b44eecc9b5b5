package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matkalabs/matkad/internal/domain"
)

// ResultArchiveStore provides read access to result history for archival.
type ResultArchiveStore interface {
	// ListBefore returns all history rows created strictly before the
	// cutoff.
	ListBefore(ctx context.Context, before time.Time) ([]domain.ResultEntry, error)
}

// AuditArchiveStore provides read access to audit entries for archival.
type AuditArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.AuditEntry, error)
}

// ArchiveImpl implements domain.Archiver by querying the stores for old
// records, serializing them to JSONL, and uploading the result to S3.
//
// Deletion of the archived records from the primary store is
// intentionally NOT performed here; that is a separate, explicit step to
// run after the archive has been verified.
type ArchiveImpl struct {
	writer  domain.BlobWriter
	results ResultArchiveStore
	audit   AuditArchiveStore
	auditor domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	results ResultArchiveStore,
	audit AuditArchiveStore,
	auditor domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:  writer,
		results: results,
		audit:   audit,
		auditor: auditor,
	}
}

// ArchiveResults queries all result history before the cutoff, serializes
// it to JSONL, and uploads the file to archive/results/ keyed by the
// cutoff date. The archival event is recorded in the audit log and the
// count of archived records is returned.
func (a *ArchiveImpl) ArchiveResults(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.results.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive results query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive results marshal: %w", err)
	}

	path := archivePath("results", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive results upload: %w", err)
	}

	count := int64(len(entries))

	if err := a.auditor.Log(ctx, "archive.results", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive results audit log: %w", err)
	}

	return count, nil
}

// ArchiveAudit queries all audit entries before the cutoff, serializes
// them to JSONL, and uploads the file to archive/audit/ keyed by the
// cutoff date.
func (a *ArchiveImpl) ArchiveAudit(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.audit.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit marshal: %w", err)
	}

	path := archivePath("audit", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive audit upload: %w", err)
	}

	count := int64(len(entries))

	if err := a.auditor.Log(ctx, "archive.audit", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive audit audit log: %w", err)
	}

	return count, nil
}

// archivePath builds the S3 key for an archive file. The key carries the
// full cutoff date so runs on different days never overwrite each other,
// whatever cadence the archive cron is configured with.
//
//	archive/results/2026-08/2026-08-28.jsonl
//	archive/audit/2026-08/2026-08-28.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s/%s.jsonl", kind, before.Format("2006-01"), before.Format("2006-01-02"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
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

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
