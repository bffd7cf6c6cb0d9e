package state

import (
	"errors"
	"fmt"
	"time"
)

// SessionState is everything one conversation owns: the catalog listing
// context and the conversation memory. Nothing here is shared between sessions.
type SessionState struct {
	SessionID   string `json:"session_id"`
	ChannelType string `json:"channel_type"`

	Catalog CatalogSession `json:"catalog"`
	Memory  Memory         `json:"memory"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CatalogSession is the catalog agent's per-session context.
type CatalogSession struct {
	Index IndexMap `json:"index,omitempty"`

	// Filters narrows the listing, keyed by catalog field key (brand, series, ...).
	Filters map[string]string `json:"filters,omitempty"`

	// GroupField and GroupValues describe the last grouped listing so a bare
	// group name in the next message can be read as a narrowing choice.
	GroupField  string   `json:"group_field,omitempty"`
	GroupValues []string `json:"group_values,omitempty"`
}

func NewSessionState(sessionID, channelType string, now time.Time) *SessionState {
	return &SessionState{
		SessionID:   sessionID,
		ChannelType: channelType,
		Catalog: CatalogSession{
			Index: IndexMap{},
		},
		Version:   1,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

func (s *SessionState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

func (s *SessionState) EnsureMaps() {
	if s.Catalog.Index == nil {
		s.Catalog.Index = IndexMap{}
	}
}

func (c *CatalogSession) SetFilter(key, value string) {
	if c.Filters == nil {
		c.Filters = make(map[string]string, 4)
	}
	c.Filters[key] = value
}

func (c *CatalogSession) ResetFilters() {
	c.Filters = nil
}

func (c *CatalogSession) ClearGrouping() {
	c.GroupField = ""
	c.GroupValues = nil
}

func (s *SessionState) Validate() error {
	if s == nil {
		return ErrNilSessionState
	}
	if s.SessionID == "" {
		return ErrInvalidSession
	}
	for idx, row := range s.Catalog.Index {
		if idx <= 0 {
			return fmt.Errorf("display index must be positive, got %d", idx)
		}
		if row <= 0 {
			return fmt.Errorf("row id must be positive, got %d for index %d", row, idx)
		}
	}
	if s.Catalog.GroupField == "" && len(s.Catalog.GroupValues) > 0 {
		return errors.New("group values set without group field")
	}
	for _, t := range s.Memory.Turns {
		if t.Role != RoleUser && t.Role != RoleAssistant {
			return fmt.Errorf("unknown turn role %q", t.Role)
		}
	}
	return nil
}
