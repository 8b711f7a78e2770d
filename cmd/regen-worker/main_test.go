package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-availability-scheduling/internal/schedule"
)

func TestLogSummary_IncludesEveryCounter(t *testing.T) {
	var buf bytes.Buffer
	logSummary(zerolog.New(&buf), schedule.RegenerationSummary{
		Doctors: 5, Created: 40, Skipped: 3, Busy: 1, Failed: 1,
	}, 2*time.Second)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "regeneration run complete", entry["message"])
	assert.EqualValues(t, 5, entry["doctors"])
	assert.EqualValues(t, 40, entry["created"])
	assert.EqualValues(t, 3, entry["skipped"])
	assert.EqualValues(t, 1, entry["busy"])
	assert.EqualValues(t, 1, entry["failed"])
}
