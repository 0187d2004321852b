package runspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		in    string
		count int64
		frac  float64
		unit  TimeUnit
	}{
		{"1ep", 1, 0, UnitEpoch},
		{"250ba", 250, 0, UnitBatch},
		{"2048sp", 2048, 0, UnitSample},
		{"100000tok", 100000, 0, UnitToken},
		{"0ba", 0, 0, UnitBatch},
		{"0.5dur", 0, 0.5, UnitFraction},
		{"1dur", 0, 1, UnitFraction},
		{".25dur", 0, 0.25, UnitFraction},
		{" 3ep ", 3, 0, UnitEpoch},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseTime(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.unit, got.Unit())
			assert.Equal(t, tc.count, got.Count())
			assert.InDelta(t, tc.frac, got.Fraction(), 1e-9)
		})
	}
}

func TestParseTimeRejects(t *testing.T) {
	bad := []string{
		"", "10", "ep", "ba10", "10 ba", "-5ep", "1.5ep",
		"2dur", "0dur", "-0.5dur", "10min", "1e3ba", "10EP", "1ep2ba",
	}

	for _, in := range bad {
		_, err := ParseTime(in)
		assert.Error(t, err, "input %q should not parse", in)
	}
}

func TestTimeString(t *testing.T) {
	for _, s := range []string{"1ep", "1000ba", "2048sp", "5000000tok", "0.5dur"} {
		parsed, err := ParseTime(s)
		require.NoError(t, err)
		assert.Equal(t, s, parsed.String())
	}

	assert.Equal(t, "100ba", NewTime(100, UnitBatch).String())
}

func TestTimeCmp(t *testing.T) {
	a, err := ParseTime("100ba")
	require.NoError(t, err)
	b, err := ParseTime("500ba")
	require.NoError(t, err)

	c, err := a.Cmp(b)
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = b.Cmp(a)
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	c, err = a.Cmp(a)
	require.NoError(t, err)
	assert.Equal(t, 0, c)

	ep, err := ParseTime("1ep")
	require.NoError(t, err)
	assert.False(t, a.Comparable(ep))
	_, err = a.Cmp(ep)
	assert.Error(t, err)
}

func TestTimeIsZero(t *testing.T) {
	zero, err := ParseTime("0ba")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	one, err := ParseTime("1ba")
	require.NoError(t, err)
	assert.False(t, one.IsZero())
}
