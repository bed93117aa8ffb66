package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posreports/backend/internal/domain/report"
)

func TestReportIndex_LoadRecordFinalize(t *testing.T) {
	store := &memoryIndexStore{initial: []string{"2025-01-01"}}
	now := func() time.Time { return time.Date(2025, 1, 5, 9, 7, 3, 0, time.UTC) }

	idx, err := LoadReportIndex(context.Background(), store, now)
	require.NoError(t, err)
	assert.True(t, idx.Contains("2025-01-01"))

	assert.True(t, idx.Record("2025-01-03", true))
	assert.False(t, idx.Record("2025-01-03", true))
	assert.False(t, idx.Record("2025-01-04", false))
	assert.Equal(t, 2, idx.Len())

	doc, err := idx.Finalize(context.Background())
	require.NoError(t, err)
	require.NotNil(t, doc.Latest)
	assert.Equal(t, "2025-01-03", *doc.Latest)
	assert.Equal(t, []string{"2025-01-03", "2025-01-01"}, doc.Dates)
	assert.Equal(t, "2025-01-05 09:07:03", doc.UpdatedAt)

	reloaded, err := LoadReportIndex(context.Background(), store, now)
	require.NoError(t, err)
	assert.Equal(t, idx.Len(), reloaded.Len())
	assert.True(t, reloaded.Contains("2025-01-03"))
}

func TestReportIndex_Errors(t *testing.T) {
	_, err := LoadReportIndex(context.Background(), &memoryIndexStore{loadErr: errors.New("timeout")}, nil)
	assert.ErrorIs(t, err, ErrIndexPersistence)

	idx, err := LoadReportIndex(context.Background(), &memoryIndexStore{saveErr: errors.New("read-only")}, nil)
	require.NoError(t, err)
	_, err = idx.Finalize(context.Background())
	assert.ErrorIs(t, err, ErrIndexPersistence)
	assert.ErrorContains(t, err, "read-only")
}

type nilIndexStore struct{ memoryIndexStore }

func (nilIndexStore) Load(context.Context) (*report.Index, error) { return nil, nil }

func TestReportIndex_NilLoadIsEmpty(t *testing.T) {
	idx, err := LoadReportIndex(context.Background(), &nilIndexStore{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
}
