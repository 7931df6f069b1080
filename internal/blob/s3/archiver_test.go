package s3blob

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkirwan/betflow/internal/domain"
)

type fakeWriter struct {
	objects map[string]string
}

func (f *fakeWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	if f.objects == nil {
		f.objects = map[string]string{}
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.objects[path] = contentType + "|" + string(body)
	return nil
}

func TestArchiveRun(t *testing.T) {
	w := &fakeWriter{}
	a := NewArchiver(w)
	started := time.Date(2026, 8, 29, 13, 0, 0, 0, time.UTC)

	evals := []domain.EvaluationRecord{
		{RunID: "run-1", MarketID: "1.234", Verdict: domain.MarketVerdict{Accepted: true}},
		{RunID: "run-1", MarketID: "1.235"},
	}
	sels := []domain.SelectionRecord{
		{ID: "sel-1", RunID: "run-1", MarketID: "1.234"},
	}

	require.NoError(t, a.ArchiveRun(context.Background(), "run-1", started, evals, sels))

	evalObj, ok := w.objects["runs/2026-08-29/run-1/evaluations.jsonl"]
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(evalObj, "application/x-ndjson|"))
	assert.Equal(t, 2, strings.Count(evalObj, "\n"), "one line per record")

	_, ok = w.objects["runs/2026-08-29/run-1/selections.jsonl"]
	assert.True(t, ok)
}

func TestArchiveRunSkipsEmpty(t *testing.T) {
	w := &fakeWriter{}
	a := NewArchiver(w)

	require.NoError(t, a.ArchiveRun(context.Background(), "run-2", time.Now(), nil, nil))
	assert.Empty(t, w.objects)
}
