package metrics

import "time"

// ExecutionResult is what the execution runtime reports back after one
// workflow run on a given version.
type ExecutionResult struct {
	Success       bool    `json:"success"`
	ExecutionTime float64 `json:"execution_time"`
}

// VersionMetrics is the running execution aggregate for one version.
// One row per (workflow, version), mutated in place on every report.
type VersionMetrics struct {
	WorkflowID       string    `json:"workflowId"`
	Version          string    `json:"version"`
	ExecutionCount   int64     `json:"executionCount"`
	SuccessCount     int64     `json:"successCount"`
	SuccessRate      float64   `json:"successRate"`
	AvgExecutionTime float64   `json:"avgExecutionTime"`
	ErrorCount       int64     `json:"errorCount"`
	PerformanceScore float64   `json:"performanceScore"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// speedWindow is the execution time, in seconds, at or beyond which the
// speed component of the performance score bottoms out.
const speedWindow = 60.0

// Apply folds one execution result into the running aggregate and
// recomputes the performance score: a 0.7/0.3 blend of success rate and
// normalized speed, clamped to [0, 100].
func (m *VersionMetrics) Apply(result ExecutionResult) {
	prevCount := float64(m.ExecutionCount)
	m.ExecutionCount++
	if result.Success {
		m.SuccessCount++
	} else {
		m.ErrorCount++
	}
	m.SuccessRate = float64(m.SuccessCount) / float64(m.ExecutionCount)
	m.AvgExecutionTime = (m.AvgExecutionTime*prevCount + result.ExecutionTime) / float64(m.ExecutionCount)

	speed := 1.0 - m.AvgExecutionTime/speedWindow
	if speed < 0 {
		speed = 0
	}
	score := 100 * (0.7*m.SuccessRate + 0.3*speed)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	m.PerformanceScore = score
	m.UpdatedAt = time.Now().UTC()
}
