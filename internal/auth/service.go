package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ixNieStudio/edgeone-webhook-pusher-sub001/internal/kv"
)

const (
	accountKeyPrefix = "account:id:"
	sendKeyPrefix    = "account:key:"

	// DefaultWindow is the rate-limit window length.
	DefaultWindow = 60 * time.Second
)

// ErrInvalidKey is returned for any key that does not resolve to an
// account. Callers must not distinguish malformed keys from unknown ones.
var ErrInvalidKey = errors.New("auth: invalid send key")

// ErrAccountNotFound is returned when an account id has no record.
var ErrAccountNotFound = errors.New("auth: account not found")

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Service owns account records and the SendKey lookup index.
type Service struct {
	store  kv.Store
	window time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

func NewService(store kv.Store, window time.Duration, log zerolog.Logger) *Service {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Service{
		store:  store,
		window: window,
		now:    time.Now,
		log:    log.With().Str("component", "auth").Logger(),
	}
}

// SetTimeProvider overrides the clock, for tests.
func (s *Service) SetTimeProvider(now func() time.Time) { s.now = now }

// CreateAccount provisions a new account with a fresh SendKey.
func (s *Service) CreateAccount(ctx context.Context) (*Account, error) {
	account := &Account{
		ID:        uuid.NewString(),
		SendKey:   GenerateSendKey(),
		CreatedAt: s.now(),
	}

	if err := s.saveAccount(ctx, account); err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, sendKeyPrefix+account.SendKey, []byte(account.ID), 0); err != nil {
		return nil, fmt.Errorf("index send key: %w", err)
	}

	s.log.Info().Str("account_id", account.ID).Msg("account created")
	return account, nil
}

// Validate resolves a SendKey to its account. Every failure collapses to
// ErrInvalidKey so the response does not leak whether the key ever existed.
func (s *Service) Validate(ctx context.Context, sendKey string) (*Account, error) {
	if sendKey == "" {
		return nil, ErrInvalidKey
	}

	accountID, err := s.store.Get(ctx, sendKeyPrefix+sendKey)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrInvalidKey
		}
		return nil, fmt.Errorf("lookup send key: %w", err)
	}

	account, err := s.GetAccount(ctx, string(accountID))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidKey
		}
		return nil, err
	}

	// A stale index entry left behind by a crashed regeneration must not
	// resurrect the old key.
	if account.SendKey != sendKey {
		return nil, ErrInvalidKey
	}
	return account, nil
}

// GetAccount loads an account record by id.
func (s *Service) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	raw, err := s.store.Get(ctx, accountKeyPrefix+accountID)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("load account: %w", err)
	}

	var account Account
	if err := json.Unmarshal(raw, &account); err != nil {
		return nil, fmt.Errorf("decode account %s: %w", accountID, err)
	}
	return &account, nil
}

// Regenerate replaces the account's SendKey. The old index entry is
// removed before the new one is written, so the old key is invalid the
// moment this returns (and stays invalid even if the write half fails).
func (s *Service) Regenerate(ctx context.Context, accountID string) (string, error) {
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return "", err
	}

	oldKey := account.SendKey
	account.SendKey = GenerateSendKey()

	if err := s.store.Delete(ctx, sendKeyPrefix+oldKey); err != nil {
		return "", fmt.Errorf("drop old send key: %w", err)
	}
	if err := s.saveAccount(ctx, account); err != nil {
		return "", err
	}
	if err := s.store.Put(ctx, sendKeyPrefix+account.SendKey, []byte(account.ID), 0); err != nil {
		return "", fmt.Errorf("index new send key: %w", err)
	}

	s.log.Info().Str("account_id", account.ID).Msg("send key regenerated")
	return account.SendKey, nil
}

// CheckAndConsume applies the fixed-window limiter and, on allow, persists
// the advanced counter. The read-then-write is not locked across
// processes: two concurrent requests can both read the window before
// either writes, and both be admitted. That race is documented, accepted
// behavior, not something this method tries to fix.
func (s *Service) CheckAndConsume(ctx context.Context, account *Account, limit int) (Decision, error) {
	now := s.now()
	window := account.RateWindow

	switch {
	case now.Equal(window.ResetAt) || now.After(window.ResetAt):
		// Window expired, start a fresh one with this request counted.
		window.Count = 1
		window.ResetAt = now.Add(s.window)
	case window.Count < limit:
		window.Count++
	default:
		return Decision{Allowed: false, Limit: limit, Remaining: 0, ResetAt: window.ResetAt}, nil
	}

	account.RateWindow = window
	if err := s.saveAccount(ctx, account); err != nil {
		return Decision{}, err
	}

	return Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - window.Count,
		ResetAt:   window.ResetAt,
	}, nil
}

// Snapshot reports the current window without consuming a request.
func (s *Service) Snapshot(account *Account, limit int) Decision {
	now := s.now()
	window := account.RateWindow

	if now.Equal(window.ResetAt) || now.After(window.ResetAt) {
		return Decision{Allowed: true, Limit: limit, Remaining: limit, ResetAt: now.Add(s.window)}
	}

	remaining := limit - window.Count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: remaining > 0, Limit: limit, Remaining: remaining, ResetAt: window.ResetAt}
}

func (s *Service) saveAccount(ctx context.Context, account *Account) error {
	raw, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("encode account: %w", err)
	}
	if err := s.store.Put(ctx, accountKeyPrefix+account.ID, raw, 0); err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

// FirstAccount returns any existing account, or ErrAccountNotFound when
// the store holds none. Used by the startup bootstrap.
func (s *Service) FirstAccount(ctx context.Context) (*Account, error) {
	keys, err := s.store.List(ctx, accountKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	if len(keys) == 0 {
		return nil, ErrAccountNotFound
	}
	return s.GetAccount(ctx, keys[0][len(accountKeyPrefix):])
}
