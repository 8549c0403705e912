package idgen

import (
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDGenerator_NewIDIsOrdered(t *testing.T) {
	g := New()

	ids := make([]string, 0, 500)
	for range 500 {
		ids = append(ids, g.NewID())
	}

	assert.True(t, sort.StringsAreSorted(ids))

	parsed, err := uuid.Parse(ids[0])
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestUUIDGenerator_NewUsername(t *testing.T) {
	g := New()

	seen := make(map[string]struct{})
	for range 100 {
		u := g.NewUsername()
		assert.True(t, strings.HasPrefix(u, "user_"))
		assert.Len(t, u, len("user_")+12)
		seen[u] = struct{}{}
	}
	assert.Len(t, seen, 100)
}

func TestUUIDGenerator_NewToken(t *testing.T) {
	g := New()
	assert.NotEqual(t, g.NewToken(), g.NewToken())
}
