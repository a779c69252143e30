package holder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_UnmodifiedYieldsNothing(t *testing.T) {
	h := NewValue("last_rank", "default")

	_, ok := h.Snapshot()
	assert.False(t, ok, "unmodified holder must not produce a snapshot")
	assert.False(t, h.Dirty())
}

func TestValue_SingleSetYieldsOneSnapshot(t *testing.T) {
	h := NewValue("last_rank", "default")
	h.Set("vip")

	s, ok := h.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "last_rank", s.Column())
	assert.Equal(t, "vip", s.Value())
	assert.Equal(t, AbsoluteUpdate, s.Kind())
	assert.Equal(t, "last_rank=?", s.Operator())
}

func TestValue_SetSameValueStaysClean(t *testing.T) {
	h := NewValue("melons", 5)
	h.Set(5)
	assert.False(t, h.Dirty())
}

func TestValue_SetBackToPersistedIsClean(t *testing.T) {
	h := NewValue("last_rank", "default")
	h.Set("vip")
	h.Set("default")

	_, ok := h.Snapshot()
	assert.False(t, ok, "dirty must imply a difference from the persisted value")
}

func TestValue_DirtyUntilMarkWritten(t *testing.T) {
	h := NewValue("last_rank", "default")
	h.Set("vip")

	s, ok := h.Snapshot()
	require.True(t, ok)

	// Peek does not clear.
	_, ok = h.Snapshot()
	assert.True(t, ok, "snapshot must not clear the dirty flag")

	h.MarkWritten(s)
	assert.False(t, h.Dirty())
	assert.Equal(t, "vip", h.Get())
}

func TestValue_SetAfterSnapshotStaysDirty(t *testing.T) {
	h := NewValue("last_rank", "default")
	h.Set("vip")
	s, _ := h.Snapshot()

	h.Set("admin")
	h.MarkWritten(s)

	next, ok := h.Snapshot()
	require.True(t, ok, "a change made after the snapshot must still be written")
	assert.Equal(t, "admin", next.Value())
}

func TestValue_PendingIsDirty(t *testing.T) {
	h := NewPending("comment", "")

	s, ok := h.Snapshot()
	require.True(t, ok, "pending holder must be written even with a zero value")
	assert.Equal(t, "", s.Value())

	h.MarkWritten(s)
	assert.False(t, h.Dirty())
}

func TestDelta_CarriesDeltaNotAbsolute(t *testing.T) {
	h := NewDelta[int64]("melons_count", 100)
	h.Add(50)

	s, ok := h.Snapshot()
	require.True(t, ok)
	assert.Equal(t, int64(50), s.Value())
	assert.Equal(t, NumericDelta, s.Kind())
	assert.Equal(t, "melons_count=melons_count+?", s.Operator())
	assert.Equal(t, int64(150), h.Get())
}

func TestDelta_SetComputesDelta(t *testing.T) {
	h := NewDelta("melons_count", 100)
	h.Set(420)

	s, ok := h.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 320, s.Value())
	assert.Equal(t, 420, h.Get())
}

func TestDelta_ZeroNetChangeIsClean(t *testing.T) {
	h := NewDelta[int64]("melons_count", 10)
	h.Add(5)
	h.Add(-5)

	_, ok := h.Snapshot()
	assert.False(t, ok)
}

func TestDelta_MarkWrittenMovesOnlyWrittenDelta(t *testing.T) {
	h := NewDelta[int64]("melons_count", 0)
	h.Add(10)
	s, _ := h.Snapshot()

	h.Add(3)
	h.MarkWritten(s)

	assert.Equal(t, int64(3), h.Pending())
	assert.Equal(t, int64(13), h.Get())
}

func TestIdentity_AlwaysYields(t *testing.T) {
	h := NewIdentity("player_id", "abc")

	for i := 0; i < 2; i++ {
		s, ok := h.Snapshot()
		require.True(t, ok)
		assert.Equal(t, Predicate, s.Kind())
		assert.Equal(t, "player_id=?", s.Operator())
		h.MarkWritten(s)
	}

	neg := NewNegatedIdentity("state", "deleted")
	s, ok := neg.Snapshot()
	require.True(t, ok)
	assert.Equal(t, NegatedPredicate, s.Kind())
	assert.Equal(t, "state!=?", s.Operator())
}

func TestNewSnapshot_Validation(t *testing.T) {
	testCases := []struct {
		name    string
		column  string
		value   any
		kind    Kind
		wantErr bool
	}{
		{name: "absolute", column: "a", value: 1, kind: AbsoluteUpdate},
		{name: "absolute nil", column: "a", value: nil, kind: AbsoluteUpdate},
		{name: "delta nil", column: "a", value: nil, kind: NumericDelta, wantErr: true},
		{name: "predicate nil", column: "a", value: nil, kind: Predicate, wantErr: true},
		{name: "empty column", column: "", value: 1, kind: Predicate, wantErr: true},
		{name: "unknown kind", column: "a", value: 1, kind: Kind(42), wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSnapshot(tc.column, tc.value, tc.kind)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSnapshot)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "NUMERIC_DELTA", NumericDelta.String())
	assert.Equal(t, "Kind(9)", Kind(9).String())
	assert.True(t, NegatedPredicate.IsPredicate())
	assert.False(t, AbsoluteUpdate.IsPredicate())
}

func TestConstructors_PanicOnEmptyColumn(t *testing.T) {
	assert.Panics(t, func() { NewValue("", 1) })
	assert.Panics(t, func() { NewDelta("", 1) })
	assert.Panics(t, func() { NewIdentity("", 1) })
}
