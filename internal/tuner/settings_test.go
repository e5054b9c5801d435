package tuner

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeasurementJSON(t *testing.T) {
	tests := []struct {
		name string
		in   Measurement
		want string
	}{
		{"finite", Measurement{Time: 1.5e6, Cycles: 9}, `{"time_ns":1500000,"cycles":9}`},
		{"nan", Measurement{Time: math.NaN(), Cycles: 3}, `{"time_ns":null,"cycles":3}`},
		{"inf", Measurement{Time: math.Inf(1)}, `{"time_ns":null,"cycles":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.in)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}

func TestMeasurementJSONNullDecodesAsNaN(t *testing.T) {
	var m Measurement
	require.NoError(t, json.Unmarshal([]byte(`{"time_ns":null,"cycles":4}`), &m))
	assert.True(t, math.IsNaN(m.Time))
	assert.Equal(t, 4, m.Cycles)

	require.NoError(t, json.Unmarshal([]byte(`{"time_ns":250,"cycles":1}`), &m))
	assert.Equal(t, Measurement{Time: 250, Cycles: 1}, m)
}

func TestTrialEventWithNaNEncodes(t *testing.T) {
	e := TrialEvent{RunIndex: 2, Settings: start, Measurement: Measurement{Time: math.NaN()}}
	raw, err := json.Marshal([]TrialEvent{e})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"time_ns":null`)
}
