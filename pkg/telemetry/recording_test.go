package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordingCapturesMeasurements(t *testing.T) {
	r := NewRecording()

	stop := r.Start()
	stop()
	r.RecordDelay(context.Background(), 5)
	r.DebugSkippedDelay(-3)

	require.Equal(t, 1, r.SyncCount())
	require.Equal(t, []int64{5}, r.Delays())
	require.Equal(t, []int64{-3}, r.Skipped())
}
