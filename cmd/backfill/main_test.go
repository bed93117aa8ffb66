package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	now := time.Date(2025, 1, 20, 15, 4, 5, 0, time.UTC)

	req, err := parseRange("", "", time.UTC, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), req.StartDate)
	assert.Equal(t, time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC), req.EndDate)

	req, err = parseRange("2025-01-02", "2025-01-05", time.UTC, now)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-02", req.StartDate.Format("2006-01-02"))
	assert.Equal(t, "2025-01-05", req.EndDate.Format("2006-01-02"))

	_, err = parseRange("2025-02-30", "", time.UTC, now)
	assert.ErrorContains(t, err, "-start")

	_, err = parseRange("2025-01-05", "2025-01-02", time.UTC, now)
	assert.ErrorContains(t, err, "before")
}
