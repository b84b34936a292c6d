// Package realtime watches the database for conversation changes and pushes
// refresh notices to connected dashboards.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"scorecard-insights-go/internal/logger"
	"scorecard-insights-go/internal/metrics"
)

var (
	// ErrChannelClosed means an established subscription was dropped.
	ErrChannelClosed = errors.New("realtime channel closed")
	// ErrSubscribeTimeout means the subscription was not confirmed in time.
	ErrSubscribeTimeout = errors.New("realtime subscribe timed out")
	// ErrRetriesExhausted is returned by Run once every reconnect attempt failed.
	ErrRetriesExhausted = errors.New("realtime reconnect retries exhausted")
)

// OpResync is delivered after a reconnect; changes may have been missed while
// the subscription was down.
const OpResync = "RESYNC"

type Event struct {
	Table string `json:"table"`
	Op    string `json:"op"`
	ID    string `json:"id,omitempty"`
}

// Stream is one live subscription. Events is closed when the subscription
// ends; Err then reports why.
type Stream interface {
	Events() <-chan Event
	Err() error
	Close() error
}

type Source interface {
	Subscribe(ctx context.Context) (Stream, error)
}

type FeedOptions struct {
	SubscribeTimeout time.Duration
	ReconnectBase    time.Duration
	MaxRetries       int
}

// Feed keeps a subscription alive and calls back on every change.
type Feed struct {
	src   Source
	opts  FeedOptions
	log   *logger.Logger
	timer backoff.Timer
}

func NewFeed(src Source, opts FeedOptions, log *logger.Logger) *Feed {
	if opts.SubscribeTimeout <= 0 {
		opts.SubscribeTimeout = 10 * time.Second
	}
	if opts.ReconnectBase <= 0 {
		opts.ReconnectBase = 2 * time.Second
	}
	return &Feed{src: src, opts: opts, log: log.Component("realtime-feed")}
}

// newBackOff doubles from ReconnectBase with no jitter and allows MaxRetries
// attempts. Reset restores the full budget.
func (f *Feed) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = f.opts.ReconnectBase
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = f.opts.ReconnectBase << 10
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(f.opts.MaxRetries)), ctx)
}

// Run subscribes and delivers events to onChange until ctx is cancelled or the
// reconnect budget is spent. Each successful subscription resets the budget,
// and every subscription after the first delivers one OpResync event.
func (f *Feed) Run(ctx context.Context, onChange func(context.Context, Event)) error {
	bo := f.newBackOff(ctx)
	subscribed := false

	op := func() error {
		stream, err := f.subscribe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer stream.Close()

		bo.Reset()
		if subscribed {
			metrics.FeedReconnects.WithLabelValues("success").Inc()
			f.log.Info("realtime resubscribed")
			onChange(ctx, Event{Op: OpResync})
		} else {
			f.log.Info("realtime subscribed")
		}
		subscribed = true

		for {
			select {
			case <-ctx.Done():
				return backoff.Permanent(ctx.Err())
			case ev, ok := <-stream.Events():
				if !ok {
					if cause := stream.Err(); cause != nil {
						return fmt.Errorf("%w: %v", ErrChannelClosed, cause)
					}
					return ErrChannelClosed
				}
				metrics.FeedEvents.WithLabelValues(ev.Table, ev.Op).Inc()
				onChange(ctx, ev)
			}
		}
	}

	notify := func(err error, wait time.Duration) {
		metrics.FeedReconnects.WithLabelValues("retry").Inc()
		f.log.WithError(err).WithField("retry_in", wait.String()).Warn("realtime connection lost, reconnecting")
	}

	var err error
	if f.timer != nil {
		err = backoff.RetryNotifyWithTimer(op, bo, notify, f.timer)
	} else {
		err = backoff.RetryNotify(op, bo, notify)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	metrics.FeedReconnects.WithLabelValues("exhausted").Inc()
	f.log.WithError(err).Error("realtime reconnect retries exhausted")
	return fmt.Errorf("%w: %v", ErrRetriesExhausted, err)
}

func (f *Feed) subscribe(ctx context.Context) (Stream, error) {
	sctx, cancel := context.WithTimeout(ctx, f.opts.SubscribeTimeout)
	defer cancel()

	stream, err := f.src.Subscribe(sctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %v", ErrSubscribeTimeout, err)
		}
		return nil, err
	}
	return stream, nil
}
