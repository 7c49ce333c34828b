package chaos

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constMetric(name string, value *float64) Metric {
	return Metric{
		Name:      name,
		Query:     func(context.Context) (float64, error) { return *value, nil },
		Threshold: Threshold{Operator: ">=", Value: 1},
	}
}

func TestThreshold_Holds(t *testing.T) {
	assert.True(t, Threshold{">", 1}.Holds(2))
	assert.False(t, Threshold{"<", 1}.Holds(2))
	assert.True(t, Threshold{">=", 2}.Holds(2))
	assert.True(t, Threshold{"<=", 2}.Holds(2))
	assert.True(t, Threshold{"==", 2}.Holds(2))
	assert.False(t, Threshold{"~", 2}.Holds(2))
}

func TestEngine_AbortsOnInvalidSteadyState(t *testing.T) {
	value := 0.0
	injected := false

	result, err := NewEngine().Run(context.Background(), Experiment{
		Name:        "broken",
		SteadyState: []Metric{constMetric("health", &value)},
		Method: []Action{{Execute: func(context.Context) error {
			injected = true
			return nil
		}}},
	})

	assert.ErrorIs(t, err, ErrSteadyStateInvalid)
	assert.False(t, result.SteadyStateValid)
	assert.Len(t, result.Violations, 1)
	assert.False(t, injected)
}

func TestEngine_RunsPhasesInOrder(t *testing.T) {
	value := 1.0
	var phases []string

	engine := NewEngine()
	result, err := engine.Run(context.Background(), Experiment{
		Name:        "degrade",
		SteadyState: []Metric{constMetric("health", &value)},
		Method: []Action{{Target: "svc", Execute: func(context.Context) error {
			phases = append(phases, "inject")
			value = 0
			return errors.New("partial injection")
		}}},
		Rollback: []Action{{Execute: func(context.Context) error {
			phases = append(phases, "rollback")
			value = 1
			return nil
		}}},
		Validation: []Assertion{{Metric: "health", Condition: func(v float64) bool { return v >= 1 }, Message: "unhealthy"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"inject", "rollback"}, phases)
	assert.True(t, result.SteadyStateValid)
	assert.False(t, result.HypothesisHeld)
	assert.Equal(t, []string{"unhealthy"}, result.FailedAssertions)
	require.Len(t, result.ErrorEvents, 1)
	assert.Equal(t, "svc", result.ErrorEvents[0].Component)
	assert.Len(t, engine.Results(), 1)
}

func TestEngine_ObservesForDuration(t *testing.T) {
	value := 1.0
	result, err := NewEngine().Run(context.Background(), Experiment{
		Name:        "steady",
		SteadyState: []Metric{constMetric("health", &value)},
		Duration:    50 * time.Millisecond,
		Interval:    10 * time.Millisecond,
		Validation:  []Assertion{{Metric: "health", Condition: func(v float64) bool { return v == 1 }}},
	})
	require.NoError(t, err)
	assert.True(t, result.HypothesisHeld)
	assert.GreaterOrEqual(t, len(result.Observations["health"]), 2)
}

func TestEngine_GameDayCountsFailures(t *testing.T) {
	good, bad := 1.0, 0.0
	engine := NewEngine()
	engine.Register(Experiment{
		Name:        "passes",
		SteadyState: []Metric{constMetric("health", &good)},
		Validation:  []Assertion{{Metric: "health", Condition: func(v float64) bool { return v == 1 }}},
	})
	engine.Register(Experiment{
		Name:        "aborts",
		SteadyState: []Metric{constMetric("health", &bad)},
	})

	var out bytes.Buffer
	failed, err := engine.ExecuteGameDay(context.Background(), GameDay{
		Name:      "weekly",
		Date:      time.Now(),
		Scenarios: engine.Experiments(),
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, 1, failed)
	assert.Contains(t, out.String(), "Hypothesis held")
	assert.Contains(t, out.String(), "Experiment failed")
}
