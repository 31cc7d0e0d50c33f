package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDRoundTrip(t *testing.T) {
	for i := 0; i < 16; i++ {
		id := NewID()
		parsed, err := ParseID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)

		data, err := json.Marshal(id)
		require.NoError(t, err)
		var decoded ID
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, id, decoded)
	}
}

func TestIDOrdering(t *testing.T) {
	a, err := ParseID("00000000-0000-4000-8000-000000000001")
	require.NoError(t, err)
	b, err := ParseID("00000000-0000-4000-8000-000000000002")
	require.NoError(t, err)

	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, 1, b.Compare(a))
}

func TestParseIDRejectsGarbage(t *testing.T) {
	_, err := ParseID("not-an-id")
	assert.Error(t, err)
}

func TestNameIDIsStable(t *testing.T) {
	assert.Equal(t, NameID("add"), NameID("add"))
	assert.NotEqual(t, NameID("add"), NameID("sub"))
}

func TestTimeStampRoundTrip(t *testing.T) {
	ts := Now()
	data, err := json.Marshal(ts)
	require.NoError(t, err)

	var decoded TimeStamp
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ts, decoded)
	assert.True(t, ts.Equal(decoded))
}

func TestTimeStampNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	ts := At(time.Date(2026, 1, 2, 15, 0, 0, 0, loc))
	assert.Equal(t, time.UTC, ts.Time().Location())
	assert.Equal(t, 12, ts.Time().Hour())
}

func TestExitKindJSON(t *testing.T) {
	cases := map[string]ExitKind{
		`{"kind":"success"}`:              Success(),
		`{"kind":"failure","exitCode":3}`: Failure(3),
		`{"kind":"timeout"}`:              TimeOut(),
	}
	for want, kind := range cases {
		data, err := json.Marshal(kind)
		require.NoError(t, err)
		assert.JSONEq(t, want, string(data))

		var decoded ExitKind
		require.NoError(t, json.Unmarshal([]byte(want), &decoded))
		assert.Equal(t, kind, decoded)
	}
}

func TestExitKindRejectsFailureWithoutCode(t *testing.T) {
	var decoded ExitKind
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"failure"}`), &decoded))
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"exploded"}`), &decoded))
}
