package history

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prices(vals ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func TestWindowReturnsOldestFirst(t *testing.T) {
	store := NewStore(10)
	for _, p := range prices(1, 2, 3, 4) {
		store.Record("SOL/USD", p)
	}

	got, err := store.Window("SOL/USD", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].Equal(decimal.NewFromInt(2)))
	assert.True(t, got[2].Equal(decimal.NewFromInt(4)))
}

func TestWindowInsufficientHistory(t *testing.T) {
	store := NewStore(10)
	store.Record("SOL/USD", decimal.NewFromInt(1))

	_, err := store.Window("SOL/USD", 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientHistory))
}

func TestUnknownPair(t *testing.T) {
	store := NewStore(4)

	_, err := store.Latest("RAY/USD")
	assert.ErrorIs(t, err, ErrUnknownPair)

	_, err = store.Window("RAY/USD", 1)
	assert.ErrorIs(t, err, ErrUnknownPair)
}

func TestEvictsOldestAtCapacity(t *testing.T) {
	store := NewStore(3)
	for _, p := range prices(10, 11, 12, 13, 14) {
		store.Record("SOL/USD", p)
	}

	require.Equal(t, 3, store.Len("SOL/USD"))
	got, err := store.Window("SOL/USD", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"12", "13", "14"}, []string{got[0].String(), got[1].String(), got[2].String()})

	latest, err := store.Latest("SOL/USD")
	require.NoError(t, err)
	assert.True(t, latest.Equal(decimal.NewFromInt(14)))
}

func TestSequenceNumbersAreMonotonicPerPair(t *testing.T) {
	store := NewStore(2)
	a := store.Record("SOL/USD", decimal.NewFromInt(1))
	b := store.Record("SOL/USD", decimal.NewFromInt(2))
	c := store.Record("RAY/USD", decimal.NewFromInt(3))
	d := store.Record("SOL/USD", decimal.NewFromInt(4))

	assert.Equal(t, uint64(1), a.Seq)
	assert.Equal(t, uint64(2), b.Seq)
	assert.Equal(t, uint64(1), c.Seq)
	assert.Equal(t, uint64(3), d.Seq)

	snap := store.Snapshot("SOL/USD")
	require.Len(t, snap, 2)
	assert.Equal(t, uint64(2), snap[0].Seq)
	assert.Equal(t, uint64(3), snap[1].Seq)
}

func TestMarksAndPairs(t *testing.T) {
	store := NewStore(5)
	store.Record("SOL/USD", decimal.NewFromInt(20))
	store.Record("RAY/USD", decimal.NewFromInt(2))
	store.Record("SOL/USD", decimal.NewFromInt(21))

	assert.Equal(t, []string{"RAY/USD", "SOL/USD"}, store.Pairs())
	marks := store.Marks()
	assert.True(t, marks["SOL/USD"].Equal(decimal.NewFromInt(21)))
	assert.True(t, marks["RAY/USD"].Equal(decimal.NewFromInt(2)))
}

func TestSnapshotIsACopy(t *testing.T) {
	store := NewStore(3)
	store.Record("SOL/USD", decimal.NewFromInt(1))
	snap := store.Snapshot("SOL/USD")
	snap[0].Price = decimal.NewFromInt(99)

	latest, err := store.Latest("SOL/USD")
	require.NoError(t, err)
	assert.True(t, latest.Equal(decimal.NewFromInt(1)))
}
