// internal/common/metrics/metrics_test.go
package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackStage(t *testing.T) {
	done := TrackStage("unit-success")
	assert.Equal(t, float64(1), testutil.ToFloat64(StageActive.WithLabelValues("unit-success")))
	done("")

	assert.Equal(t, float64(0), testutil.ToFloat64(StageActive.WithLabelValues("unit-success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(StageCompleted.WithLabelValues("unit-success")))

	TrackStage("unit-failure")("CLASSIFICATION_FAILED")
	assert.Equal(t, float64(1), testutil.ToFloat64(StageFailed.WithLabelValues("unit-failure", "CLASSIFICATION_FAILED")))
	assert.Equal(t, float64(0), testutil.ToFloat64(StageCompleted.WithLabelValues("unit-failure")))
}
