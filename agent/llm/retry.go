package llm

import (
	"context"
	"errors"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"
)

type retryingChatModel struct {
	inner    einomodel.BaseChatModel
	name     string
	attempts uint64
	base     time.Duration
}

var _ einomodel.BaseChatModel = (*retryingChatModel)(nil)

// WithRetry retries Generate with exponential backoff. attempts counts
// retries after the first call; zero disables retrying.
func WithRetry(inner einomodel.BaseChatModel, name string, attempts uint64, base time.Duration) einomodel.BaseChatModel {
	if attempts == 0 {
		return inner
	}
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	return &retryingChatModel{
		inner:    inner,
		name:     name,
		attempts: attempts,
		base:     base,
	}
}

func (m *retryingChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	var (
		out     *schema.Message
		attempt int
	)
	backoff := retry.WithMaxRetries(m.attempts, retry.NewExponential(m.base))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		msg, err := m.inner.Generate(ctx, input, opts...)
		if err == nil {
			out = msg
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		log.Ctx(ctx).Warn().Err(err).
			Str("model", m.name).
			Int("attempt", attempt).
			Msg("chat model call failed, retrying")
		return retry.RetryableError(err)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *retryingChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return m.inner.Stream(ctx, input, opts...)
}
