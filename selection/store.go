package selection

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// KeyPrefix namespaces persisted selections per user.
const KeyPrefix = "selected_services:"

// LockPrefix namespaces the per-user write locks.
const LockPrefix = "selected_services_lock:"

// Store is raw byte storage for encoded selections.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error) // ErrNotFound when absent
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	// Lock blocks until key is held or ctx is done.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

var ErrNotFound = errors.New("selection: not found")

// Repository is the typed accessor over a Store.
type Repository struct {
	store Store
}

func NewRepository(store Store) *Repository {
	return &Repository{store: store}
}

func Key(userID string) string {
	return KeyPrefix + userID
}

func LockKey(userID string) string {
	return LockPrefix + userID
}

// Load returns the user's persisted selection. It never fails: a missing,
// unreadable or malformed record yields an empty selection.
func (r *Repository) Load(ctx context.Context, userID string) Selection {
	data, err := r.store.Get(ctx, Key(userID))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			zap.L().Warn("selection load failed", zap.String("user_id", userID), zap.Error(err))
		}
		return New()
	}
	sel, err := Decode(data)
	if err != nil {
		zap.L().Warn("discarding stored selection", zap.String("user_id", userID), zap.Error(err))
		return New()
	}
	return sel
}

// Update runs fn on the stored selection and saves the result while holding
// the user's lock, so overlapping toggles apply one after the other. An error
// from fn is returned as is and nothing is saved.
func (r *Repository) Update(ctx context.Context, userID string, fn func(Selection) error) (Selection, error) {
	unlock, err := r.store.Lock(ctx, LockKey(userID))
	if err != nil {
		return nil, fmt.Errorf("lock selection: %w", err)
	}
	defer unlock()

	sel := r.Load(ctx, userID)
	if err := fn(sel); err != nil {
		return nil, err
	}
	if err := r.Save(ctx, userID, sel); err != nil {
		return nil, err
	}
	return sel, nil
}

// Save writes the whole selection for userID. Callers that read first should
// use Update.
func (r *Repository) Save(ctx context.Context, userID string, sel Selection) error {
	data, err := Encode(sel)
	if err != nil {
		return fmt.Errorf("encode selection: %w", err)
	}
	if err := r.store.Set(ctx, Key(userID), data); err != nil {
		return fmt.Errorf("save selection: %w", err)
	}
	return nil
}

// Delete removes the stored selection, e.g. after the cart is cleared.
func (r *Repository) Delete(ctx context.Context, userID string) error {
	if err := r.store.Del(ctx, Key(userID)); err != nil {
		return fmt.Errorf("delete selection: %w", err)
	}
	return nil
}
