package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mkirwan/betflow/internal/domain"
)

const jsonlContentType = "application/x-ndjson"

// Archiver uploads a completed scan run's records as JSONL objects, one
// line per record, keyed by run date and run ID:
//
//	runs/2026-08-29/<runID>/evaluations.jsonl
//	runs/2026-08-29/<runID>/selections.jsonl
type Archiver struct {
	writer domain.BlobWriter
}

// NewArchiver creates an Archiver writing through the given BlobWriter.
func NewArchiver(writer domain.BlobWriter) *Archiver {
	return &Archiver{writer: writer}
}

// ArchiveRun uploads the run's evaluations and selections. Empty record
// sets are skipped rather than uploading empty objects.
func (a *Archiver) ArchiveRun(ctx context.Context, runID string, startedAt time.Time, evals []domain.EvaluationRecord, sels []domain.SelectionRecord) error {
	prefix := fmt.Sprintf("runs/%s/%s", startedAt.UTC().Format("2006-01-02"), runID)

	if len(evals) > 0 {
		body, err := marshalJSONL(evals)
		if err != nil {
			return fmt.Errorf("s3blob: encode evaluations for run %s: %w", runID, err)
		}
		if err := a.writer.Put(ctx, prefix+"/evaluations.jsonl", bytes.NewReader(body), jsonlContentType); err != nil {
			return err
		}
	}

	if len(sels) > 0 {
		body, err := marshalJSONL(sels)
		if err != nil {
			return fmt.Errorf("s3blob: encode selections for run %s: %w", runID, err)
		}
		if err := a.writer.Put(ctx, prefix+"/selections.jsonl", bytes.NewReader(body), jsonlContentType); err != nil {
			return err
		}
	}

	return nil
}

func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
