package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string            `cbor:"name"`
	Count uint64            `cbor:"count"`
	Tags  map[string]uint32 `cbor:"tags"`
}

func TestCodec_CanonicalEncoding(t *testing.T) {
	a := record{Name: "x", Count: 1, Tags: map[string]uint32{"b": 2, "a": 1, "c": 3}}
	b := record{Name: "x", Count: 1, Tags: map[string]uint32{"c": 3, "a": 1, "b": 2}}

	ea, err := Marshal(a)
	require.NoError(t, err)
	eb, err := Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, ea, eb)

	var back record
	require.NoError(t, Unmarshal(ea, &back))
	assert.Equal(t, a, back)
}

func TestMemoryStore_CommitsOnSuccess(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := s.Execute(ctx, func(tx *Tx) error {
		return tx.Put("k", record{Name: "first", Count: 1})
	})
	require.NoError(t, err)

	err = s.Execute(ctx, func(tx *Tx) error {
		got, err := Load[record](tx, "k")
		require.NoError(t, err)
		assert.Equal(t, "first", got.Name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_DiscardsOnError(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("precondition failed")

	err := s.Execute(ctx, func(tx *Tx) error {
		require.NoError(t, tx.Put("a", record{Name: "a"}))
		require.NoError(t, tx.Put("b", record{Name: "b"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, s.Len())

	err = s.Execute(ctx, func(tx *Tx) error {
		ok, err := tx.Exists("a")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestTx_ReadsOwnWrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := s.Execute(ctx, func(tx *Tx) error {
		var r record
		assert.ErrorIs(t, tx.Get("k", &r), ErrNotFound)

		require.NoError(t, tx.Put("k", record{Count: 1}))
		require.NoError(t, tx.Put("k", record{Count: 2}))
		require.NoError(t, tx.Get("k", &r))
		assert.Equal(t, uint64(2), r.Count)

		tx.Delete("k")
		assert.ErrorIs(t, tx.Get("k", &r), ErrNotFound)
		return tx.Put("k", record{Count: 3})
	})
	require.NoError(t, err)

	err = s.Execute(ctx, func(tx *Tx) error {
		r, err := Load[record](tx, "k")
		require.NoError(t, err)
		assert.Equal(t, uint64(3), r.Count)
		tx.Delete("k")
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, s.Len())
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Execute(ctx, func(tx *Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestRedisStore_Peek(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewRedisStore(db)
	ctx := context.Background()

	data, err := Marshal(record{Name: "slot", Count: 7})
	require.NoError(t, err)

	mock.ExpectGet("ledger:slot:1").SetVal(string(data))
	mock.ExpectGet("ledger:slot:2").RedisNil()
	mock.ExpectGet("ledger:slot:3").SetErr(errors.New("connection refused"))

	var r record
	require.NoError(t, s.Peek(ctx, "slot:1", &r))
	assert.Equal(t, uint64(7), r.Count)

	assert.ErrorIs(t, s.Peek(ctx, "slot:2", &r), ErrNotFound)

	err = s.Peek(ctx, "slot:3", &r)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMapPgError(t *testing.T) {
	assert.NoError(t, mapPgError(nil))
	other := errors.New("other")
	assert.Equal(t, other, mapPgError(other))
}
