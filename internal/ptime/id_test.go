package ptime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityIDRoundTrip(t *testing.T) {
	id, err := NextEntityID()
	require.NoError(t, err)

	rendered := id.String()
	assert.Len(t, rendered, 16)

	back, err := ParseEntityID(rendered)
	require.NoError(t, err)
	assert.Equal(t, id, back)
}

func TestEntityIDsAreMonotonicAndUnique(t *testing.T) {
	seen := make(map[uint64]bool)
	var prev EntityID
	for i := 0; i < 100; i++ {
		id, err := NextEntityID()
		require.NoError(t, err)
		assert.False(t, seen[id.Get()], "id reused: %v", id)
		seen[id.Get()] = true
		if i > 0 {
			assert.Greater(t, id.Counter(), prev.Counter())
		}
		prev = id
	}
}

func TestMoireHexAlphabetRemapsHexLetters(t *testing.T) {
	rendered := encodeMoireHex(0xabcdef0123456789)
	for _, c := range rendered {
		assert.NotContains(t, "abcdef", string(c))
	}
}

func TestParseMoireHexRejectsWrongLength(t *testing.T) {
	_, err := ParseMoireHex("too-short")
	assert.Error(t, err)
}

func TestBacktraceIDFitsInFloat64SafeInteger(t *testing.T) {
	id, err := NextBacktraceID()
	require.NoError(t, err)
	assert.LessOrEqual(t, uint64(id), maxSafeInteger)
}

func TestPTimeSaturatesInsteadOfGoingNegative(t *testing.T) {
	assert.Equal(t, PTime(0), msToPTime(-1))
	assert.Equal(t, PTime(42), msToPTime(42))
}

func TestSeqAllocatorMonotonic(t *testing.T) {
	a := NewSeqAllocator()
	assert.Equal(t, SeqNo(1), a.Next())
	assert.Equal(t, SeqNo(2), a.Next())
	assert.Equal(t, SeqNo(3), a.Peek())
}

func TestSeqAllocatorSaturatesOnOverflow(t *testing.T) {
	a := &SeqAllocator{n: ^uint64(0)}
	assert.Equal(t, SeqNo(^uint64(0)), a.Next())
}
