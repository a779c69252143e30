package dberr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSentinel = errors.New("sentinel")

func TestError_Format(t *testing.T) {
	err := Conflict("lanatus_player", "abc", "UPDATE")
	assert.Equal(t,
		"CONFLICT: write predicate matched no row, entity was modified or deleted concurrently (stmt=UPDATE, table=lanatus_player, id=abc)",
		err.Error())

	usage := Usage(errSentinel, "bad call")
	assert.Equal(t, "USAGE: bad call: sentinel", usage.Error())
}

func TestError_Classification(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		usage    bool
		conflict bool
		driver   bool
		notFound bool
	}{
		{name: "usage", err: Usage(errSentinel, "x"), usage: true},
		{name: "conflict", err: Conflict("t", "1", "UPDATE"), conflict: true},
		{name: "driver", err: Driver("COMMIT", errSentinel), driver: true},
		{name: "not found", err: NotFound("t", "1"), notFound: true},
		{name: "wrapped conflict", err: fmt.Errorf("save: %w", Conflict("t", "1", "UPDATE")), conflict: true},
		{name: "plain", err: errSentinel},
		{name: "nil", err: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.usage, IsUsage(tc.err))
			assert.Equal(t, tc.conflict, IsConflict(tc.err))
			assert.Equal(t, tc.driver, IsDriver(tc.err))
			assert.Equal(t, tc.notFound, IsNotFound(tc.err))
		})
	}
}

func TestError_UnwrapReachesSentinel(t *testing.T) {
	err := fmt.Errorf("outer: %w", Usage(errSentinel, "x"))
	assert.ErrorIs(t, err, errSentinel)
}
