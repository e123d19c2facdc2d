package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/ixNieStudio/edgeone-webhook-pusher-sub001/internal/kv"
)

const (
	recordKeyPrefix = "history:"

	// DefaultPageSize and MaxPageSize bound List.
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ErrRecordNotFound covers both truly absent records and records owned by
// a different account, so existence never leaks across accounts.
var ErrRecordNotFound = errors.New("history: record not found")

// Page is one slice of an account's history. When HasMore is set, Cursor
// carries the id of the last returned item; passing it back resumes
// immediately after that record.
type Page struct {
	Items   []*PushRecord
	HasMore bool
	Cursor  string
}

// Store persists push records on the key-value capability and answers
// reverse-chronological, cursor-paginated queries scoped to one account.
type Store struct {
	store kv.Store
	log   zerolog.Logger
}

func NewStore(store kv.Store, log zerolog.Logger) *Store {
	return &Store{
		store: store,
		log:   log.With().Str("component", "history").Logger(),
	}
}

// Append persists a finished record. Records are immutable afterwards.
func (s *Store) Append(ctx context.Context, record *PushRecord) error {
	for _, result := range record.DeliveryResults {
		if result.Status == StatusPending {
			return fmt.Errorf("history: refusing to persist pending delivery result for channel %s", result.ChannelID)
		}
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := s.store.Put(ctx, recordKey(record.AccountID, record.ID), raw, 0); err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

// Get loads one record scoped to accountID. A foreign-owned id behaves
// identically to a nonexistent one.
func (s *Store) Get(ctx context.Context, accountID, recordID string) (*PushRecord, error) {
	raw, err := s.store.Get(ctx, recordKey(accountID, recordID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("load record: %w", err)
	}

	var record PushRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", recordID, err)
	}
	return &record, nil
}

// List returns the account's records newest first. limit is clamped to
// [1, MaxPageSize] with DefaultPageSize for zero; cursor is the id of the
// last item of the previous page.
func (s *Store) List(ctx context.Context, accountID string, limit int, cursor string) (*Page, error) {
	limit = clampLimit(limit)

	records, err := s.loadAll(ctx, accountID)
	if err != nil {
		return nil, err
	}

	// Newest first; ids break timestamp ties so pagination is stable
	// regardless of the order the store enumerated the keys in.
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})

	start := 0
	if cursor != "" {
		for index, record := range records {
			if record.ID == cursor {
				start = index + 1
				break
			}
		}
	}

	end := start + limit
	if end > len(records) {
		end = len(records)
	}

	page := &Page{Items: records[start:end]}
	if end < len(records) {
		page.HasMore = true
		if len(page.Items) > 0 {
			page.Cursor = page.Items[len(page.Items)-1].ID
		}
	}
	return page, nil
}

func (s *Store) loadAll(ctx context.Context, accountID string) ([]*PushRecord, error) {
	keys, err := s.store.List(ctx, recordKeyPrefix+accountID+":")
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	records := make([]*PushRecord, 0, len(keys))
	for _, key := range keys {
		raw, err := s.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("load record %q: %w", key, err)
		}
		var record PushRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			s.log.Warn().Str("key", key).Err(err).Msg("skipping undecodable push record")
			continue
		}
		records = append(records, &record)
	}
	return records, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	default:
		return limit
	}
}

func recordKey(accountID, recordID string) string {
	return recordKeyPrefix + accountID + ":" + recordID
}
