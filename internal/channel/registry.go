package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ixNieStudio/edgeone-webhook-pusher-sub001/internal/kv"
)

const channelKeyPrefix = "channel:"

var (
	// ErrUnsupportedType means no adapter is registered for the type.
	ErrUnsupportedType = errors.New("channel: unsupported channel type")

	// ErrInvalidCredentials means the adapter rejected the credential map.
	ErrInvalidCredentials = errors.New("channel: credentials rejected by adapter")

	// ErrChannelNotFound covers both absent channels and channels owned by
	// another account.
	ErrChannelNotFound = errors.New("channel: not found")
)

// Registry holds per-account channel configuration on the key-value store
// and routes every credential map through the adapter contract before it
// is persisted. The dispatch engine reads from it at send time; the
// account-management collaborators create/update/delete through it.
type Registry struct {
	store    kv.Store
	adapters Table
	now      func() time.Time
	log      zerolog.Logger
}

func NewRegistry(store kv.Store, adapters Table, log zerolog.Logger) *Registry {
	return &Registry{
		store:    store,
		adapters: adapters,
		now:      time.Now,
		log:      log.With().Str("component", "channel_registry").Logger(),
	}
}

// SetTimeProvider overrides the clock, for tests.
func (r *Registry) SetTimeProvider(now func() time.Time) { r.now = now }

// Adapters exposes the immutable adapter table.
func (r *Registry) Adapters() Table { return r.adapters }

// Create validates creds against the adapter for channelType and persists
// a new enabled channel. Rejection by the adapter blocks persistence.
func (r *Registry) Create(ctx context.Context, accountID, channelType, name string, creds map[string]string) (*Channel, error) {
	adapter, ok := r.adapters.Get(channelType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, channelType)
	}
	if !adapter.ValidateCredentials(creds) {
		return nil, ErrInvalidCredentials
	}

	now := r.now()
	ch := &Channel{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Type:        channelType,
		Name:        name,
		Enabled:     true,
		Credentials: creds,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := r.save(ctx, ch); err != nil {
		return nil, err
	}

	r.log.Info().
		Str("account_id", accountID).
		Str("channel_id", ch.ID).
		Str("type", channelType).
		Msg("channel created")
	return ch, nil
}

// Update replaces name/enabled/credentials of an existing channel. A nil
// creds map keeps the stored credentials; a non-nil map must pass the
// adapter's validation again.
func (r *Registry) Update(ctx context.Context, accountID, channelID, name string, enabled bool, creds map[string]string) (*Channel, error) {
	ch, err := r.Get(ctx, accountID, channelID)
	if err != nil {
		return nil, err
	}

	if creds != nil {
		adapter, ok := r.adapters.Get(ch.Type)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ch.Type)
		}
		if !adapter.ValidateCredentials(creds) {
			return nil, ErrInvalidCredentials
		}
		ch.Credentials = creds
	}

	if name != "" {
		ch.Name = name
	}
	ch.Enabled = enabled
	ch.UpdatedAt = r.now()

	if err := r.save(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// Delete removes a channel owned by accountID.
func (r *Registry) Delete(ctx context.Context, accountID, channelID string) error {
	if _, err := r.Get(ctx, accountID, channelID); err != nil {
		return err
	}
	return r.store.Delete(ctx, channelKey(accountID, channelID))
}

// Get loads one channel. Foreign-owned ids behave exactly like absent ones.
func (r *Registry) Get(ctx context.Context, accountID, channelID string) (*Channel, error) {
	raw, err := r.store.Get(ctx, channelKey(accountID, channelID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, fmt.Errorf("load channel: %w", err)
	}

	var ch Channel
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, fmt.Errorf("decode channel %s: %w", channelID, err)
	}
	return &ch, nil
}

// List returns every channel of the account in registry enumeration
// order: creation time ascending, id as tie-break. The dispatch engine
// relies on this order being deterministic.
func (r *Registry) List(ctx context.Context, accountID string) ([]*Channel, error) {
	keys, err := r.store.List(ctx, channelKeyPrefix+accountID+":")
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	channels := make([]*Channel, 0, len(keys))
	for _, key := range keys {
		raw, err := r.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				continue // deleted between list and get
			}
			return nil, fmt.Errorf("load channel %q: %w", key, err)
		}
		var ch Channel
		if err := json.Unmarshal(raw, &ch); err != nil {
			r.log.Warn().Str("key", key).Err(err).Msg("skipping undecodable channel record")
			continue
		}
		channels = append(channels, &ch)
	}

	sort.Slice(channels, func(i, j int) bool {
		if !channels[i].CreatedAt.Equal(channels[j].CreatedAt) {
			return channels[i].CreatedAt.Before(channels[j].CreatedAt)
		}
		return channels[i].ID < channels[j].ID
	})
	return channels, nil
}

// ListEnabled filters List down to enabled channels.
func (r *Registry) ListEnabled(ctx context.Context, accountID string) ([]*Channel, error) {
	channels, err := r.List(ctx, accountID)
	if err != nil {
		return nil, err
	}

	enabled := channels[:0]
	for _, ch := range channels {
		if ch.Enabled {
			enabled = append(enabled, ch)
		}
	}
	return enabled, nil
}

func (r *Registry) save(ctx context.Context, ch *Channel) error {
	raw, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("encode channel: %w", err)
	}
	if err := r.store.Put(ctx, channelKey(ch.AccountID, ch.ID), raw, 0); err != nil {
		return fmt.Errorf("save channel: %w", err)
	}
	return nil
}

func channelKey(accountID, channelID string) string {
	return channelKeyPrefix + accountID + ":" + channelID
}
