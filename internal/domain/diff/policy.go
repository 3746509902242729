package diff

import (
	"fmt"

	"github.com/Knetic/govaluate"
)

// Rule maps an impact level to a threshold condition over the diff
// score. Conditions are govaluate expressions with a single "score"
// parameter, which keeps the thresholds configurable without code
// changes.
type Rule struct {
	Level     ImpactLevel
	Condition string
}

// DefaultRules are the engine's stock thresholds. The relative
// weighting in Score is fixed; these cut points are policy.
func DefaultRules() []Rule {
	return []Rule{
		{Level: ImpactCritical, Condition: "score >= 10"},
		{Level: ImpactHigh, Condition: "score >= 7"},
		{Level: ImpactMedium, Condition: "score >= 4"},
	}
}

// Policy classifies diff scores into impact levels by evaluating its
// rules in order; the first matching rule wins and no match means low.
type Policy struct {
	rules []rule
}

type rule struct {
	level ImpactLevel
	expr  *govaluate.EvaluableExpression
}

// NewPolicy compiles threshold rules. Rules must be ordered most to
// least severe.
func NewPolicy(rules []Rule) (*Policy, error) {
	p := &Policy{}
	for _, r := range rules {
		expr, err := govaluate.NewEvaluableExpression(r.Condition)
		if err != nil {
			return nil, fmt.Errorf("invalid impact condition for %s: %w", r.Level, err)
		}
		p.rules = append(p.rules, rule{level: r.Level, expr: expr})
	}
	return p, nil
}

// Level returns the impact level for a score.
func (p *Policy) Level(score int) ImpactLevel {
	params := map[string]interface{}{"score": float64(score)}
	for _, r := range p.rules {
		result, err := r.expr.Evaluate(params)
		if err != nil {
			continue
		}
		if matched, ok := result.(bool); ok && matched {
			return r.level
		}
	}
	return ImpactLow
}

// Classify scores a diff and stamps its impact level.
func (p *Policy) Classify(d *VersionDiff) {
	d.ImpactLevel = p.Level(Score(d))
}
