package orchestratornode

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/tanpawarit/asic-salesbot/agent/contract"
	statex "github.com/tanpawarit/asic-salesbot/agent/state"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidSession = statex.ErrInvalidSession
)

type GraphInput struct {
	SessionID string
	Text      string
}

type GraphOutput struct {
	Reply  string
	Intent contractx.Intent
}

// GraphState travels through every node of one turn. Session is a private
// copy; nothing reaches the store before validate_and_save_state.
type GraphState struct {
	SessionID string
	Text      string
	Now       time.Time

	Session        *statex.SessionState
	Classification contractx.Classification

	Draft   string
	Catalog *contractx.CatalogResponse
	Reply   string
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	return &GraphState{
		SessionID: sessionID,
		Text:      text,
		Now:       nowFn().UTC(),
	}, nil
}
