package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkest/parkest/internal/api/models"
)

func TestTimestamp_JSON(t *testing.T) {
	berlin := time.FixedZone("CEST", 2*60*60)
	ts := models.Timestamp(time.Date(2026, 6, 12, 9, 30, 15, 999, berlin))

	b, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2026-06-12T07:30:15Z"`, string(b))

	var back models.Timestamp
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.Time().Equal(time.Date(2026, 6, 12, 7, 30, 15, 0, time.UTC)))
}

func TestTimestamp_UnmarshalNull(t *testing.T) {
	want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ts := models.Timestamp(want)
	require.NoError(t, json.Unmarshal([]byte("null"), &ts))
	assert.Equal(t, want, ts.Time())

	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}
