package ledger

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("ledger: record not found")

// Store runs one instruction at a time against a consistent view of the
// records it touches. fn's writes are committed only when it returns nil.
type Store interface {
	Execute(ctx context.Context, fn func(tx *Tx) error) error
	Close() error
}

type readFunc func(ctx context.Context, key string) ([]byte, error)

type write struct {
	key   string
	value []byte // nil deletes
}

// Tx is the staged view handed to an instruction. It is not safe for use
// outside the Execute call that created it.
type Tx struct {
	ctx    context.Context
	read   readFunc
	cache  map[string][]byte
	staged map[string]int
	writes []write
}

func newTx(ctx context.Context, read readFunc) *Tx {
	return &Tx{
		ctx:    ctx,
		read:   read,
		cache:  make(map[string][]byte),
		staged: make(map[string]int),
	}
}

func (tx *Tx) Context() context.Context { return tx.ctx }

func (tx *Tx) raw(key string) ([]byte, error) {
	if i, ok := tx.staged[key]; ok {
		if tx.writes[i].value == nil {
			return nil, ErrNotFound
		}
		return tx.writes[i].value, nil
	}
	if v, ok := tx.cache[key]; ok {
		if v == nil {
			return nil, ErrNotFound
		}
		return v, nil
	}
	v, err := tx.read(tx.ctx, key)
	if errors.Is(err, ErrNotFound) {
		tx.cache[key] = nil
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger read %s: %w", key, err)
	}
	tx.cache[key] = v
	return v, nil
}

// Get decodes the record at key into v.
func (tx *Tx) Get(key string, v any) error {
	data, err := tx.raw(key)
	if err != nil {
		return err
	}
	if err := Unmarshal(data, v); err != nil {
		return fmt.Errorf("ledger decode %s: %w", key, err)
	}
	return nil
}

func (tx *Tx) Exists(key string) (bool, error) {
	_, err := tx.raw(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (tx *Tx) Put(key string, v any) error {
	data, err := Marshal(v)
	if err != nil {
		return fmt.Errorf("ledger encode %s: %w", key, err)
	}
	tx.stage(key, data)
	return nil
}

func (tx *Tx) Delete(key string) {
	tx.stage(key, nil)
}

func (tx *Tx) stage(key string, data []byte) {
	if i, ok := tx.staged[key]; ok {
		tx.writes[i].value = data
		return
	}
	tx.staged[key] = len(tx.writes)
	tx.writes = append(tx.writes, write{key: key, value: data})
}

// Dirty reports whether the instruction staged any writes.
func (tx *Tx) Dirty() bool { return len(tx.writes) > 0 }

// Load is a typed Get.
func Load[T any](tx *Tx, key string) (*T, error) {
	var v T
	if err := tx.Get(key, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
