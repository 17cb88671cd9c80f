// Package store keeps the set of subscribed chats and persists it.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/exp/slog"
)

var (
	// ErrNotFound is returned by storages when nothing was persisted yet.
	ErrNotFound = errors.New("not found")
	// ErrCorrupted is returned by storages when the persisted state
	// is readable, but isn't a list of subscribers.
	ErrCorrupted = errors.New("corrupted state")
)

// Storage persists the list of subscribers.
type Storage interface {
	// Load returns persisted ids or ErrNotFound.
	Load(ctx context.Context) ([]int64, error)
	// Save replaces persisted ids with the given, sorted ones.
	Save(ctx context.Context, ids []int64) error
}

// Registry is a set of subscribed chat ids backed by a Storage.
// Every mutation is persisted under the same lock, so the storage
// always holds a consistent snapshot of the set.
type Registry struct {
	log     *slog.Logger
	storage Storage

	mu  sync.Mutex
	ids map[int64]struct{}
}

// NewRegistry makes an empty registry, call Load to restore persisted state.
func NewRegistry(lg *slog.Logger, storage Storage) *Registry {
	return &Registry{log: lg, storage: storage, ids: map[int64]struct{}{}}
}

// Load replaces the in-memory set with the persisted one. A missing or
// corrupted storage leaves the registry empty, it is never fatal.
func (r *Registry) Load(ctx context.Context) {
	ids, err := r.storage.Load(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.ids = map[int64]struct{}{}

	if err != nil {
		r.log.WarnCtx(ctx, "cannot load subscribers, starting with none", slog.Any("err", err))
		return
	}

	for _, id := range ids {
		r.ids[id] = struct{}{}
	}

	r.log.InfoCtx(ctx, "subscribers loaded", slog.Int("count", len(r.ids)))
}

// Add subscribes the chat. Adding an existing id is a no-op,
// but the set is persisted anyway.
func (r *Registry) Add(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ids[id] = struct{}{}
	return r.persistLocked(ctx)
}

// Remove unsubscribes the given chats, absent ids are ignored.
func (r *Registry) Remove(ctx context.Context, ids ...int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		delete(r.ids, id)
	}
	return r.persistLocked(ctx)
}

// Persist writes the current set to the storage.
func (r *Registry) Persist(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.persistLocked(ctx)
}

// Snapshot returns sorted subscribed ids.
func (r *Registry) Snapshot() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sorted(r.ids)
}

// Len returns the number of subscribers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

// Contains reports whether the chat is subscribed.
func (r *Registry) Contains(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[id]
	return ok
}

// persistLocked saves the set, in-memory state stays authoritative on failure.
func (r *Registry) persistLocked(ctx context.Context) error {
	if err := r.storage.Save(ctx, sorted(r.ids)); err != nil {
		r.log.ErrorCtx(ctx, "failed to persist subscribers",
			slog.Int("count", len(r.ids)), slog.Any("err", err))
		return fmt.Errorf("persist subscribers: %w", err)
	}
	return nil
}

func sorted(set map[int64]struct{}) []int64 {
	ids := lo.Keys(set)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
