package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ixNieStudio/edgeone-webhook-pusher-sub001/internal/channel"
	"github.com/ixNieStudio/edgeone-webhook-pusher-sub001/internal/history"
)

// ErrMissingTitle is the client error for an empty title after trimming.
var ErrMissingTitle = errors.New("dispatch: title is required")

// Request is one inbound push. ChannelID optionally restricts dispatch to
// a single channel of the account.
type Request struct {
	Title     string
	Content   string
	ChannelID string
}

// Engine fans a single push out to the account's channels, aggregates the
// per-channel outcomes and persists the record before returning.
type Engine struct {
	channels *channel.Registry
	adapters channel.Table
	history  *history.Store
	now      func() time.Time
	newID    func() string
	log      zerolog.Logger
}

func NewEngine(channels *channel.Registry, history *history.Store, log zerolog.Logger) *Engine {
	return &Engine{
		channels: channels,
		adapters: channels.Adapters(),
		history:  history,
		now:      time.Now,
		newID:    uuid.NewString,
		log:      log.With().Str("component", "dispatch").Logger(),
	}
}

// SetTimeProvider overrides the clock, for tests.
func (e *Engine) SetTimeProvider(now func() time.Time) { e.now = now }

// SetIDProvider overrides push id generation, for tests.
func (e *Engine) SetIDProvider(newID func() string) { e.newID = newID }

// Push executes one fan-out. The request "succeeds" when the fan-out was
// executed and recorded; individual channel failures are captured as
// failed delivery results and never fail the push itself. An empty target
// set still produces a record with zero results.
func (e *Engine) Push(ctx context.Context, accountID string, req Request) (*history.PushRecord, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, ErrMissingTitle
	}

	targets, err := e.resolveTargets(ctx, accountID, req.ChannelID)
	if err != nil {
		return nil, err
	}

	// One id and timestamp shared by the record and every delivery.
	pushID := e.newID()
	createdAt := e.now()

	message := channel.Message{Title: req.Title, Content: req.Content}
	results := e.fanOut(ctx, pushID, targets, message)

	record := &history.PushRecord{
		ID:              pushID,
		AccountID:       accountID,
		Title:           req.Title,
		Content:         req.Content,
		CreatedAt:       createdAt,
		DeliveryResults: results,
	}

	if err := e.history.Append(ctx, record); err != nil {
		return nil, fmt.Errorf("persist push record: %w", err)
	}

	e.log.Info().
		Str("push_id", pushID).
		Str("account_id", accountID).
		Int("channels", len(results)).
		Msg("push dispatched")
	return record, nil
}

// resolveTargets picks the channel set for this push: the explicit
// channel when given and enabled, otherwise all enabled channels. An
// explicit channel that is missing, foreign-owned or disabled yields an
// empty set, not an error.
func (e *Engine) resolveTargets(ctx context.Context, accountID, channelID string) ([]*channel.Channel, error) {
	if channelID != "" {
		ch, err := e.channels.Get(ctx, accountID, channelID)
		if err != nil {
			if errors.Is(err, channel.ErrChannelNotFound) {
				return nil, nil
			}
			return nil, err
		}
		if !ch.Enabled {
			return nil, nil
		}
		return []*channel.Channel{ch}, nil
	}

	return e.channels.ListEnabled(ctx, accountID)
}

// fanOut runs every channel attempt concurrently and joins them all.
// Results land at the index of their channel's resolution order, so the
// output is deterministic regardless of completion order.
func (e *Engine) fanOut(ctx context.Context, pushID string, targets []*channel.Channel, msg channel.Message) []history.DeliveryResult {
	results := make([]history.DeliveryResult, len(targets))

	var wg sync.WaitGroup
	for index, target := range targets {
		wg.Add(1)
		go func(index int, target *channel.Channel) {
			defer wg.Done()
			results[index] = e.deliverOne(ctx, pushID, target, msg)
		}(index, target)
	}
	wg.Wait()

	return results
}

// deliverOne is one isolated channel attempt. Whatever goes wrong inside
// it, including a panicking adapter, becomes a failed result; nothing may
// abort sibling deliveries.
func (e *Engine) deliverOne(ctx context.Context, pushID string, target *channel.Channel, msg channel.Message) (result history.DeliveryResult) {
	result = history.DeliveryResult{
		ChannelID:   target.ID,
		ChannelType: target.Type,
		Status:      history.StatusPending,
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			result.Status = history.StatusFailed
			result.Error = fmt.Sprintf("adapter panic: %v", recovered)
			e.log.Error().
				Str("push_id", pushID).
				Str("channel_id", target.ID).
				Interface("panic", recovered).
				Msg("adapter panicked during send")
		}
	}()

	adapter, ok := e.adapters.Get(target.Type)
	if !ok {
		result.Status = history.StatusFailed
		result.Error = fmt.Sprintf("no adapter registered for channel type %q", target.Type)
		return result
	}

	externalID, err := adapter.Send(ctx, msg, target.Credentials)
	if err != nil {
		result.Status = history.StatusFailed
		result.Error = err.Error()
		e.log.Warn().
			Str("push_id", pushID).
			Str("channel_id", target.ID).
			Str("type", target.Type).
			Err(err).
			Msg("channel delivery failed")
		return result
	}

	result.Status = history.StatusSuccess
	result.ExternalID = externalID
	return result
}
