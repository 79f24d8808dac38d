// Package memory implements the identity key-value driver on a plain map.
// It backs tests and the degraded path taken when the sqlite file cannot
// be opened.
package memory

import (
	"context"
	"sync"

	"github.com/revahq/reva-widget/store"
)

type DB struct {
	mu sync.RWMutex
	kv map[string]string
}

func NewDB() *DB {
	return &DB{kv: make(map[string]string)}
}

func (d *DB) Get(_ context.Context, key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.kv[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

func (d *DB) Set(_ context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.kv[key] = value
	return nil
}

func (d *DB) Delete(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.kv, key)
	return nil
}

func (d *DB) Close() error {
	return nil
}
