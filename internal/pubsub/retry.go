package pubsub

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cenkalti/backoff/v4"
	"github.com/flexprice/dunning/internal/config"
)

// RetryPolicy bounds how often a failed publish is repeated
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

// RetryPolicyFromConfig reads the outbox retry settings
func RetryPolicyFromConfig(cfg config.OutboxConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries:      cfg.MaxRetries,
		InitialInterval: cfg.InitialInterval,
		MaxInterval:     cfg.MaxInterval,
		Multiplier:      cfg.Multiplier,
		MaxElapsedTime:  cfg.MaxElapsedTime,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier > 0 {
		b.Multiplier = p.Multiplier
	}
	b.MaxElapsedTime = p.MaxElapsedTime
	return backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx)
}

// PublishWithRetry publishes msg, retrying transient failures with
// exponential backoff. onRetry is called before every retry and may be nil.
func PublishWithRetry(ctx context.Context, pub Publisher, topic string, msg *message.Message, policy RetryPolicy, onRetry func(err error, wait time.Duration)) error {
	op := func() error {
		// watermill messages carry ack state; publish a fresh copy per attempt
		return pub.Publish(ctx, topic, msg.Copy())
	}
	return backoff.RetryNotify(op, policy.backOff(ctx), onRetry)
}
