package store

import (
	"context"
	"time"
)

// Define builds a Definition from a typed fetcher.
func Define[T any](kind Kind, parameterized bool, defaultErr string, fetch func(ctx context.Context, param string) (T, error)) Definition {
	return Definition{
		Kind:          kind,
		Parameterized: parameterized,
		DefaultError:  defaultErr,
		Fetch: func(ctx context.Context, param string) (any, error) {
			v, err := fetch(ctx, param)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

// Slot is a typed Snapshot.
type Slot[T any] struct {
	Key       Key
	Status    Status
	Data      T
	HasData   bool
	Err       string
	UpdatedAt time.Time
}

// Typed converts a Snapshot to a Slot. Data of an unexpected type is dropped.
func Typed[T any](snap Snapshot) Slot[T] {
	out := Slot[T]{
		Key:       snap.Key,
		Status:    snap.Status,
		Err:       snap.Err,
		UpdatedAt: snap.UpdatedAt,
	}
	if snap.HasData {
		if v, ok := snap.Data.(T); ok {
			out.Data = v
			out.HasData = true
		}
	}
	return out
}

// Resource is a typed view of one kind in a Store.
type Resource[T any] struct {
	store *Store
	kind  Kind
}

// Bind returns a typed accessor for kind.
func Bind[T any](s *Store, kind Kind) Resource[T] {
	return Resource[T]{store: s, kind: kind}
}

func (r Resource[T]) Kind() Kind { return r.kind }

func (r Resource[T]) Key(param string) Key { return K(r.kind, param) }

func (r Resource[T]) Trigger(param string) (bool, error) { return r.store.Trigger(r.Key(param)) }

func (r Resource[T]) Refetch(param string) error { return r.store.Refetch(r.Key(param)) }

func (r Resource[T]) Select(param string) Slot[T] { return Typed[T](r.store.Select(r.Key(param))) }

func (r Resource[T]) Put(param string, v T) error { return r.store.Put(r.Key(param), v) }

// Await waits for the slot to leave Loading.
func (r Resource[T]) Await(ctx context.Context, param string) (Slot[T], error) {
	snap, err := r.store.Await(ctx, r.Key(param))
	return Typed[T](snap), err
}

// Load triggers the slot and waits for it to settle.
func (r Resource[T]) Load(ctx context.Context, param string) (Slot[T], error) {
	if _, err := r.Trigger(param); err != nil {
		return Slot[T]{Key: r.Key(param), Status: StatusNotStarted}, err
	}
	return r.Await(ctx, param)
}

// Reload refetches the slot and waits for it to settle.
func (r Resource[T]) Reload(ctx context.Context, param string) (Slot[T], error) {
	if err := r.Refetch(param); err != nil {
		return Slot[T]{Key: r.Key(param), Status: StatusNotStarted}, err
	}
	return r.Await(ctx, param)
}
