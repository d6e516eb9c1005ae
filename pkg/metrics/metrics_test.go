package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r, err := NewRecorder()
	require.NoError(t, err)

	r.ObserveBatch("select_components", OutcomeCommitted, 20*time.Millisecond)
	r.ObserveBatch("select_components", OutcomeRejected, time.Millisecond)
	r.ObserveBatch("select_components", OutcomeRejected, time.Millisecond)
	r.ConstraintViolation("KAFKA_BROKER")
	r.InstanceWritten("SELECTED")
	r.InstanceWritten("SELECTED")
	r.Pruned(3)
	r.Pruned(0)

	assert.Equal(t, float64(1), testutil.ToFloat64(r.batches.WithLabelValues("select_components", OutcomeCommitted)))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.batches.WithLabelValues("select_components", OutcomeRejected)))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.violations.WithLabelValues("KAFKA_BROKER")))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.written.WithLabelValues("SELECTED")))
	assert.Equal(t, float64(3), testutil.ToFloat64(r.pruned))

	count, err := testutil.GatherAndCount(r.Registry(), "placer_placement_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	r.ObserveBatch("select_components", OutcomeFailed, time.Second)
	r.ConstraintViolation("X")
	r.LockWait(time.Second)
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.WriteTextfile("/nonexistent/metrics.prom"))
}

func TestWriteTextfile(t *testing.T) {
	r, err := NewRecorder()
	require.NoError(t, err)
	r.Pruned(2)

	path := filepath.Join(t.TempDir(), "placer.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "placer_placement_instances_pruned_total 2"))
}
