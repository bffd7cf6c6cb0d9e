package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/asic-salesbot/agent/contract"
	nodex "github.com/tanpawarit/asic-salesbot/agent/nodes/orchestrator"
	statex "github.com/tanpawarit/asic-salesbot/agent/state"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidSession = nodex.ErrInvalidSession
)

type Config struct {
	ChannelType string        `envconfig:"CHANNEL_TYPE" default:"chat"`
	TurnTimeout time.Duration `envconfig:"TURN_TIMEOUT" default:"60s" validate:"gte=0"`

	// HistoryExchanges is the window handed to the classifier, responders
	// and the merger. The catalog agent always gets the reduced window.
	HistoryExchanges int `envconfig:"HISTORY_EXCHANGES" default:"10" validate:"gte=1"`
}

// Reply is the outcome of one completed turn.
type Reply struct {
	Text   string
	Intent contractx.Intent
}

type Orchestrator struct {
	store   statex.Store
	models  contractx.Registry
	catalog contractx.CatalogAgent

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	// one-slot semaphore per session id; turns of one session never overlap
	locks *xsync.MapOf[string, chan struct{}]

	channelType      string
	turnTimeout      time.Duration
	historyExchanges int

	now func() time.Time
}

func New(
	store statex.Store,
	models contractx.Registry,
	catalog contractx.CatalogAgent,
	cfg Config,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if models == nil {
		return nil, errors.New("model registry is required")
	}
	if catalog == nil {
		return nil, errors.New("catalog agent is required")
	}

	channelType := strings.TrimSpace(cfg.ChannelType)
	if channelType == "" {
		channelType = "chat"
	}
	history := cfg.HistoryExchanges
	if history <= 0 {
		history = statex.DefaultHistoryExchanges
	}

	o := &Orchestrator{
		store:            store,
		models:           models,
		catalog:          catalog,
		locks:            xsync.NewMapOf[string, chan struct{}](),
		channelType:      channelType,
		turnTimeout:      cfg.TurnTimeout,
		historyExchanges: history,
		now:              time.Now,
	}

	graphRunner, err := o.compileHandleMessageGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleMessage runs one turn. A failed turn leaves the stored session
// untouched.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID string, text string) (Reply, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Reply{}, ErrInvalidSession
	}

	if o.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.turnTimeout)
		defer cancel()
	}

	unlock, err := o.lock(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}
	defer unlock()

	logger := log.Ctx(ctx).With().Str("session_id", sessionID).Logger()
	ctx = logger.WithContext(ctx)

	started := o.now()
	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		SessionID: sessionID,
		Text:      text,
	})
	if err != nil {
		// eino wraps node errors; the deadline is what callers branch on.
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		logger.Warn().Err(err).Msg("turn failed")
		return Reply{}, err
	}

	logger.Info().
		Str("intent", string(out.Intent)).
		Dur("took", o.now().Sub(started)).
		Msg("turn completed")
	return Reply{Text: out.Reply, Intent: out.Intent}, nil
}

// ResetSession forgets everything stored for the session.
func (o *Orchestrator) ResetSession(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrInvalidSession
	}

	unlock, err := o.lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := o.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session state: %w", err)
	}
	return nil
}

func (o *Orchestrator) lock(ctx context.Context, sessionID string) (func(), error) {
	sem, _ := o.locks.LoadOrCompute(sessionID, func() chan struct{} {
		return make(chan struct{}, 1)
	})

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for session %s: %w", sessionID, ctx.Err())
	}
}
