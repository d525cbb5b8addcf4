package perspective

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAll_FixedOrder(t *testing.T) {
	ps := All()
	require.Len(t, ps, Count)
	for i, p := range ps {
		assert.Equal(t, i+1, p.ID)
	}
	assert.Equal(t, "Control of Toxic Output", ps[0].Name)
	assert.Equal(t, "Verifiability", ps[9].Name)

	// Callers cannot mutate the table.
	ps[0].Name = "changed"
	assert.Equal(t, "Control of Toxic Output", All()[0].Name)
}

func TestLookup(t *testing.T) {
	p, ok := ByID(8)
	require.True(t, ok)
	assert.Equal(t, "Robustness", p.Name)

	_, ok = ByID(0)
	assert.False(t, ok)
	_, ok = ByID(11)
	assert.False(t, ok)

	p, ok = ByName("Privacy Protection")
	require.True(t, ok)
	assert.Equal(t, 5, p.ID)

	_, ok = ByName("privacy protection")
	assert.False(t, ok)
}

func TestFromLeafID(t *testing.T) {
	cases := map[string]int{
		"G1-1":     1,
		"G3-2-1":   3,
		"G10-4-2":  10,
		"G10":      10,
		"G9-12-3a": 9,
	}
	for id, want := range cases {
		p, err := FromLeafID(id)
		require.NoError(t, err, id)
		assert.Equal(t, want, p.ID, id)
	}

	for _, id := range []string{"S1-1", "", "G0-1", "G11-1", "g1-1"} {
		_, err := FromLeafID(id)
		assert.Error(t, err, id)
	}
}

func TestRefs_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Refs
	}{
		{"string", `"G1-1"`, Refs{"G1-1"}},
		{"list", `["G1-1","G1-2"]`, Refs{"G1-1", "G1-2"}},
		{"null", `null`, nil},
		{"empty string", `""`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Refs
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}

	var bad Refs
	assert.Error(t, json.Unmarshal([]byte(`42`), &bad))
}

func TestRefs_RoundTripShape(t *testing.T) {
	one, err := json.Marshal(Refs{"G2-1"})
	require.NoError(t, err)
	assert.Equal(t, `"G2-1"`, string(one))

	many, err := json.Marshal(Refs{"G2-1", "G2-2"})
	require.NoError(t, err)
	assert.Equal(t, `["G2-1","G2-2"]`, string(many))

	assert.True(t, Refs{"G2-1", "G2-2"}.Contains("G2-2"))
	assert.False(t, Refs{"G2-1"}.Contains("G2"))
}
