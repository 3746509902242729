package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyFirstReport(t *testing.T) {
	m := &VersionMetrics{WorkflowID: "wf-1", Version: "1.0.1"}

	m.Apply(ExecutionResult{Success: true, ExecutionTime: 6})

	assert.Equal(t, int64(1), m.ExecutionCount)
	assert.Equal(t, int64(1), m.SuccessCount)
	assert.Equal(t, int64(0), m.ErrorCount)
	assert.Equal(t, 1.0, m.SuccessRate)
	assert.Equal(t, 6.0, m.AvgExecutionTime)
	// 100 * (0.7*1.0 + 0.3*(1 - 6/60)) = 97
	assert.InDelta(t, 97.0, m.PerformanceScore, 0.001)
	assert.False(t, m.UpdatedAt.IsZero())
}

func TestApplyRunningAggregate(t *testing.T) {
	m := &VersionMetrics{WorkflowID: "wf-1", Version: "1.0.1"}

	m.Apply(ExecutionResult{Success: true, ExecutionTime: 10})
	m.Apply(ExecutionResult{Success: false, ExecutionTime: 20})
	m.Apply(ExecutionResult{Success: true, ExecutionTime: 30})

	assert.Equal(t, int64(3), m.ExecutionCount)
	assert.Equal(t, int64(2), m.SuccessCount)
	assert.Equal(t, int64(1), m.ErrorCount)
	assert.InDelta(t, 2.0/3.0, m.SuccessRate, 0.001)
	assert.InDelta(t, 20.0, m.AvgExecutionTime, 0.001)
}

func TestApplySlowExecutionsFloorSpeed(t *testing.T) {
	m := &VersionMetrics{}

	m.Apply(ExecutionResult{Success: true, ExecutionTime: 600})

	// speed component bottoms out at 0, success keeps the score at 70
	assert.InDelta(t, 70.0, m.PerformanceScore, 0.001)
}

func TestApplyScoreStaysInRange(t *testing.T) {
	m := &VersionMetrics{}
	for i := 0; i < 50; i++ {
		m.Apply(ExecutionResult{Success: i%2 == 0, ExecutionTime: float64(i * 13)})
		assert.GreaterOrEqual(t, m.PerformanceScore, 0.0)
		assert.LessOrEqual(t, m.PerformanceScore, 100.0)
	}
}

func TestApplyAllFailures(t *testing.T) {
	m := &VersionMetrics{}
	m.Apply(ExecutionResult{Success: false, ExecutionTime: 1})
	m.Apply(ExecutionResult{Success: false, ExecutionTime: 1})

	assert.Equal(t, 0.0, m.SuccessRate)
	assert.Equal(t, int64(2), m.ErrorCount)
	// only the speed component remains
	assert.InDelta(t, 100*0.3*(1-1.0/60.0), m.PerformanceScore, 0.001)
}
