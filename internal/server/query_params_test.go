package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptionalTime(t *testing.T) {
	got, err := parseOptionalTime("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseOptionalTime(" 2026-03-02 ")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), *got)

	got, err = parseOptionalTime("2026-03-02T15:04:05Z")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2026, 3, 2, 15, 4, 5, 0, time.UTC), *got)

	_, err = parseOptionalTime("02/03/2026")
	assert.Error(t, err)
}

func TestParseLimit(t *testing.T) {
	limit, err := parseLimit("")
	require.NoError(t, err)
	assert.Equal(t, 0, limit)

	limit, err = parseLimit("25")
	require.NoError(t, err)
	assert.Equal(t, 25, limit)

	_, err = parseLimit("-1")
	assert.Error(t, err)
}
