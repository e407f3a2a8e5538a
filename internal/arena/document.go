package arena

import (
	"context"

	"github.com/flexprice/dunning/internal/domain/snapshot"
	ierr "github.com/flexprice/dunning/internal/errors"
	jsoniter "github.com/json-iterator/go"
)

// codec sorts map keys so equal values always encode to equal bytes
var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Doc is one lazily loaded snapshot document of a tenant. Get loads it on
// first use; Put and Flush write the full document back.
type Doc[T any] struct {
	repo     snapshot.Repository
	tenantID string
	name     string
	empty    func() *T

	value  *T
	loaded bool
	dirty  bool
}

func newDoc[T any](repo snapshot.Repository, tenantID, name string, empty func() *T) *Doc[T] {
	return &Doc[T]{repo: repo, tenantID: tenantID, name: name, empty: empty}
}

// Get returns the cached value, loading it from the store on first use.
// A missing document yields the empty value. Callers must not mutate the
// returned value in place; use Put or Stage with a modified copy.
func (d *Doc[T]) Get(ctx context.Context) (*T, error) {
	if d.loaded {
		return d.value, nil
	}

	data, err := d.repo.Get(ctx, d.tenantID, d.name)
	switch {
	case ierr.IsNotFound(err):
		d.value = d.empty()
	case err != nil:
		return nil, ierr.WithError(err).
			WithHintf("Could not load %s for tenant %s", d.name, d.tenantID).
			Mark(ierr.ErrPersistence)
	default:
		v := d.empty()
		if err := codec.Unmarshal(data, v); err != nil {
			return nil, ierr.WithError(err).
				WithHintf("Snapshot %s of tenant %s is corrupt", d.name, d.tenantID).
				Mark(ierr.ErrPersistence)
		}
		d.value = v
	}

	d.loaded = true
	return d.value, nil
}

// Reload drops the cached value and reads the document from the store
// again. A staged value that was not flushed is lost.
func (d *Doc[T]) Reload(ctx context.Context) (*T, error) {
	d.value = nil
	d.loaded = false
	d.dirty = false
	return d.Get(ctx)
}

// Put writes v and makes it the cached value. When the write fails the
// cache keeps the previous value.
func (d *Doc[T]) Put(ctx context.Context, v *T) error {
	if err := d.write(ctx, v); err != nil {
		return err
	}
	d.value = v
	d.loaded = true
	d.dirty = false
	return nil
}

// Stage replaces the cached value without writing it. Flush persists it.
func (d *Doc[T]) Stage(v *T) {
	d.value = v
	d.loaded = true
	d.dirty = true
}

// Dirty reports whether a staged value awaits Flush
func (d *Doc[T]) Dirty() bool {
	return d.dirty
}

// Flush writes a staged value. It is a no-op when nothing is staged.
func (d *Doc[T]) Flush(ctx context.Context) error {
	if !d.dirty {
		return nil
	}
	if err := d.write(ctx, d.value); err != nil {
		return err
	}
	d.dirty = false
	return nil
}

// Encode returns the bytes Put would write for v
func (d *Doc[T]) Encode(v *T) ([]byte, error) {
	return codec.Marshal(v)
}

func (d *Doc[T]) write(ctx context.Context, v *T) error {
	data, err := d.Encode(v)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("Could not encode %s for tenant %s", d.name, d.tenantID).
			Mark(ierr.ErrPersistence)
	}
	if err := d.repo.Put(ctx, d.tenantID, d.name, data); err != nil {
		if ierr.IsValidation(err) {
			return err
		}
		return ierr.WithError(err).
			WithHintf("Could not persist %s for tenant %s", d.name, d.tenantID).
			Mark(ierr.ErrPersistence)
	}
	return nil
}
