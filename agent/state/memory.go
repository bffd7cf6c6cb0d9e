package state

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultHistoryExchanges bounds the recent-turn view handed to responders.
	DefaultHistoryExchanges = 10
	// CatalogWindowExchanges is the reduced window the catalog agent sees.
	CatalogWindowExchanges = 3
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

type EntityKey string

const (
	EntityName          EntityKey = "name"
	EntityPhone         EntityKey = "phone"
	EntityTelegram      EntityKey = "telegram"
	EntityEmail         EntityKey = "email"
	EntityBrand         EntityKey = "brand"
	EntityModel         EntityKey = "model"
	EntitySeries        EntityKey = "series"
	EntityObjectionType EntityKey = "objection_type"
	EntityBudget        EntityKey = "budget"
	EntityCondition     EntityKey = "condition"
	EntityPreferredTime EntityKey = "preferred_time"
	EntityHashRate      EntityKey = "hash_rate"
	EntitySelection     EntityKey = "selection"
)

// Entities holds extracted facts about the customer and their choice.
type Entities map[EntityKey]string

func (e Entities) Get(key EntityKey) string {
	if e == nil {
		return ""
	}
	return e[key]
}

func (e Entities) Clone() Entities {
	out := make(Entities, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Merge overwrites only with non-empty values from delta.
func (e *Entities) Merge(delta Entities) {
	for k, v := range delta {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if *e == nil {
			*e = make(Entities, len(delta))
		}
		(*e)[k] = v
	}
}

// Memory is the authoritative per-session conversation memory. Turns are
// never truncated here; views are.
type Memory struct {
	Turns    []Turn   `json:"turns,omitempty"`
	Entities Entities `json:"entities,omitempty"`
}

// MemoryView is a read-only copy handed to agents.
type MemoryView struct {
	Turns    []Turn   `json:"turns"`
	Entities Entities `json:"entities"`
}

func (m *Memory) Append(role Role, text string, now time.Time) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	m.Turns = append(m.Turns, Turn{Role: role, Text: text, At: now.UTC()})
}

func (m *Memory) Remember(delta Entities) {
	m.Entities.Merge(delta)
}

// Window returns the last `exchanges` user/assistant pairs plus all entities.
func (m Memory) Window(exchanges int) MemoryView {
	turns := m.Turns
	if exchanges >= 0 && len(turns) > exchanges*2 {
		turns = turns[len(turns)-exchanges*2:]
	}
	return MemoryView{
		Turns:    append([]Turn(nil), turns...),
		Entities: m.Entities.Clone(),
	}
}

// Format renders the view for prompt payloads.
func (v MemoryView) Format() string {
	if len(v.Turns) == 0 {
		return "Диалог только начался"
	}

	var builder strings.Builder
	for _, t := range v.Turns {
		builder.WriteString(fmt.Sprintf("%s: %s\n", t.Role, t.Text))
	}
	return builder.String()
}
