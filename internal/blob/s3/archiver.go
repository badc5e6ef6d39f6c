package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

const jsonlContentType = "application/x-ndjson"

// Archiver implements domain.Archiver: rows older than the cutoff are written
// to S3 as JSONL and then deleted from the primary store. Rows are deleted
// only after a successful upload.
type Archiver struct {
	writer     domain.BlobWriter
	opps       domain.OpportunityStore
	executions domain.ExecutionStore
	audit      domain.AuditStore
	now        func() time.Time
	logger     *slog.Logger
}

// NewArchiver creates an Archiver. audit may be nil.
func NewArchiver(
	writer domain.BlobWriter,
	opps domain.OpportunityStore,
	executions domain.ExecutionStore,
	audit domain.AuditStore,
	logger *slog.Logger,
) *Archiver {
	return &Archiver{
		writer:     writer,
		opps:       opps,
		executions: executions,
		audit:      audit,
		now:        time.Now,
		logger:     logger.With(slog.String("component", "s3_archiver")),
	}
}

// ArchiveOpportunities archives opportunities detected before the cutoff.
func (a *Archiver) ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error) {
	rows, err := a.opps.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: list opportunities: %w", err)
	}
	return archive(ctx, a, "opportunities", before, rows, a.opps.DeleteBefore)
}

// ArchiveExecutions archives journal rows created before the cutoff.
func (a *Archiver) ArchiveExecutions(ctx context.Context, before time.Time) (int64, error) {
	rows, err := a.executions.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: list executions: %w", err)
	}
	return archive(ctx, a, "executions", before, rows, a.executions.DeleteBefore)
}

func archive[T any](
	ctx context.Context,
	a *Archiver,
	kind string,
	before time.Time,
	rows []T,
	deleteBefore func(context.Context, time.Time) (int64, error),
) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(rows)
	if err != nil {
		return 0, fmt.Errorf("s3blob: encode %s: %w", kind, err)
	}
	path := archivePath(kind, before, a.now())
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType); err != nil {
		return 0, fmt.Errorf("s3blob: upload %s: %w", kind, err)
	}

	deleted, err := deleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: prune %s after upload to %s: %w", kind, path, err)
	}
	if deleted != int64(len(rows)) {
		// Rows inserted with an old timestamp between list and delete are
		// pruned without being archived.
		a.logger.WarnContext(ctx, "s3_archiver: archived and pruned counts differ",
			slog.String("kind", kind),
			slog.Int("archived", len(rows)),
			slog.Int64("pruned", deleted),
		)
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive."+kind, map[string]any{
			"path":   path,
			"count":  len(rows),
			"before": before.UTC().Format(time.RFC3339),
		}); err != nil {
			a.logger.WarnContext(ctx, "s3_archiver: audit log failed",
				slog.String("kind", kind),
				slog.String("error", err.Error()),
			)
		}
	}
	return int64(len(rows)), nil
}

// archivePath partitions archives by cutoff date; the run timestamp keeps
// repeated runs from overwriting each other.
//
//	archive/executions/2025-01-31/1738300000.jsonl
func archivePath(kind string, before, runAt time.Time) string {
	return fmt.Sprintf("archive/%s/%s/%d.jsonl", kind, before.UTC().Format("2006-01-02"), runAt.Unix())
}

func marshalJSONL[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, r := range rows {
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*Archiver)(nil)
