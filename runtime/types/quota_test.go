package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuota_UnmarshalJSON_Number(t *testing.T) {
	var q Quota
	require.NoError(t, json.Unmarshal([]byte(`42`), &q))
	assert.False(t, q.IsUnlimited())
	assert.Equal(t, uint64(42), q.Value())
	assert.False(t, q.Exhausted())
}

func TestQuota_UnmarshalJSON_Zero_IsExhausted(t *testing.T) {
	var q Quota
	require.NoError(t, json.Unmarshal([]byte(`0`), &q))
	assert.True(t, q.Exhausted())
}

func TestQuota_UnmarshalJSON_UnlimitedString(t *testing.T) {
	for _, raw := range []string{`"unlimited"`, `"Unlimited"`, `"UNLIMITED"`} {
		var q Quota
		require.NoError(t, json.Unmarshal([]byte(raw), &q))
		assert.True(t, q.IsUnlimited(), "input %s", raw)
		assert.False(t, q.Exhausted())
	}
}

func TestQuota_UnmarshalJSON_NumericString(t *testing.T) {
	var q Quota
	require.NoError(t, json.Unmarshal([]byte(`"17"`), &q))
	assert.Equal(t, uint64(17), q.Value())
}

func TestQuota_MarshalJSON_RoundTrip(t *testing.T) {
	data, err := json.Marshal(UnlimitedQuota)
	require.NoError(t, err)
	assert.Equal(t, `"unlimited"`, string(data))

	data, err = json.Marshal(FiniteQuota(9))
	require.NoError(t, err)
	assert.Equal(t, `9`, string(data))

	var roundTripped Quota
	require.NoError(t, json.Unmarshal(data, &roundTripped))
	assert.Equal(t, uint64(9), roundTripped.Value())
}

func TestQuota_UnmarshalJSON_Null(t *testing.T) {
	q := FiniteQuota(5)
	require.NoError(t, json.Unmarshal([]byte(`null`), &q))
	assert.Equal(t, uint64(0), q.Value())
	assert.False(t, q.IsUnlimited())
}
