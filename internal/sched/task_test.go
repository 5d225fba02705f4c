package sched

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSafetyLevel(t *testing.T) {
	cases := map[string]SafetyLevel{
		"A": SafetyA, "b": SafetyB, " C ": SafetyC, "d": SafetyD,
		"": SafetyA, "QM": SafetyA,
	}
	for in, want := range cases {
		require.Equal(t, want, ParseSafetyLevel(in), "label %q", in)
	}
	require.Equal(t, "D", SafetyD.String())
	require.Equal(t, "?", SafetyLevel(0).String())
}

func TestScore(t *testing.T) {
	task := NewTask("T1", "C", 2, 4, "Pedestrian Crossing Detection")

	got, err := task.Score()
	require.NoError(t, err)
	require.InDelta(t, 0.5*3+0.5*2-0.1*4, got, 1e-12)

	again, err := task.Score()
	require.NoError(t, err)
	require.Equal(t, got, again, "score is pure")

	key, err := task.QueueKey()
	require.NoError(t, err)
	require.Equal(t, -got, key)
}

func TestScore_OrdersByUrgency(t *testing.T) {
	low := NewTask("low", "A", 1, 6, "")
	high := NewTask("high", "C", 3, 3, "")

	lk, err := low.QueueKey()
	require.NoError(t, err)
	hk, err := high.QueueKey()
	require.NoError(t, err)
	require.Less(t, hk, lk, "more urgent task has the lower queue key")
}

func TestScore_MissingFields(t *testing.T) {
	var missing *MissingFieldError

	_, err := (&Task{ID: "bare"}).Score()
	require.True(t, errors.As(err, &missing))
	require.Equal(t, FieldSafety, missing.Field)
	require.Equal(t, TaskID("bare"), missing.TaskID)

	partial := &Task{ID: "partial"}
	partial.SetSafety("B")
	_, err = partial.Score()
	require.True(t, errors.As(err, &missing))
	require.Equal(t, FieldCriticality, missing.Field)
	require.EqualError(t, err, "task partial: missing realtime_criticality")

	// duration is not needed to score, only to dispatch
	partial.SetCriticality(0)
	_, err = partial.Score()
	require.NoError(t, err)
	require.ErrorAs(t, partial.Validate(), &missing)
	require.Equal(t, FieldDuration, missing.Field)
}

func TestValidate_RejectsNonPositiveDuration(t *testing.T) {
	require.Error(t, NewTask("T", "A", 1, 0, "").Validate())
	require.Error(t, NewTask("T", "A", 1, -1, "").Validate())
	require.NoError(t, NewTask("T", "A", 1, 0.5, "").Validate())
}

func TestParsePolicyName(t *testing.T) {
	for in, want := range map[string]PolicyName{
		"mixed-critical": PolicyMixedCritical,
		" FAIR\n":        PolicyFair,
		"Energy-Aware":   PolicyEnergyAware,
	} {
		got, ok := ParsePolicyName(in)
		require.True(t, ok, in)
		require.Equal(t, want, got)
	}

	got, ok := ParsePolicyName("mixed critical")
	require.False(t, ok)
	require.Equal(t, PolicyFair, got)
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	require.ErrorIs(t, &MetadataFetchError{TaskID: "T", Err: cause}, cause)
	require.ErrorIs(t, &StrategyFetchError{Err: cause}, cause)
	require.ErrorIs(t, &PreemptionInterrupt{TaskID: "T", Sensor: "CSI", Attempt: 1}, ErrPreempted)
}
