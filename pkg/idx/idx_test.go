package idx_test

import (
	"testing"
	"time"

	"github.com/justgovernance/govstore/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	id := idx.New()
	require.Len(t, id.String(), 26)
	require.NotEqual(t, id, idx.New())
}

func TestOrdering(t *testing.T) {
	a := idx.NewAt(time.Unix(1, 0).UTC())
	b := idx.NewAt(time.Unix(2, 0).UTC())

	require.Equal(t, -1, idx.Compare(a, b))
	require.Equal(t, 1, idx.Compare(b, a))
	require.Equal(t, 0, idx.Compare(a, a))
}

func TestSourceUsesClock(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	src := idx.NewSource(func() time.Time { return now })

	first := src.New()
	second := src.New()
	// Same millisecond, so monotonic entropy keeps them ordered.
	require.Equal(t, -1, idx.Compare(first, second))

	earlier := src.NewAt(now.Add(-time.Hour))
	require.Equal(t, -1, idx.Compare(earlier, first), "the timestamp decides order across milliseconds")
}
