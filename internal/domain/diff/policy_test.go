package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicyThresholds(t *testing.T) {
	policy, err := NewPolicy(DefaultRules())
	require.NoError(t, err)

	assert.Equal(t, ImpactLow, policy.Level(0))
	assert.Equal(t, ImpactLow, policy.Level(3))
	assert.Equal(t, ImpactMedium, policy.Level(4))
	assert.Equal(t, ImpactMedium, policy.Level(6))
	assert.Equal(t, ImpactHigh, policy.Level(7))
	assert.Equal(t, ImpactHigh, policy.Level(9))
	assert.Equal(t, ImpactCritical, policy.Level(10))
	assert.Equal(t, ImpactCritical, policy.Level(42))
}

func TestCustomPolicyRules(t *testing.T) {
	policy, err := NewPolicy([]Rule{
		{Level: ImpactCritical, Condition: "score > 100"},
		{Level: ImpactHigh, Condition: "score >= 2"},
	})
	require.NoError(t, err)

	assert.Equal(t, ImpactHigh, policy.Level(10))
	assert.Equal(t, ImpactCritical, policy.Level(101))
	assert.Equal(t, ImpactLow, policy.Level(1))
}

func TestNewPolicyRejectsBadExpression(t *testing.T) {
	_, err := NewPolicy([]Rule{{Level: ImpactHigh, Condition: "score >="}})
	assert.Error(t, err)
}

func TestPolicyClassifyStampsImpact(t *testing.T) {
	policy, err := NewPolicy(DefaultRules())
	require.NoError(t, err)

	d := &VersionDiff{
		StructuralChanges: []string{"step added: a", "step added: b", "step added: c", "step added: d"},
	}
	policy.Classify(d)
	assert.Equal(t, ImpactCritical, d.ImpactLevel)
}
