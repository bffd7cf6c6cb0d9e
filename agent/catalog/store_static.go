package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	contractx "github.com/tanpawarit/asic-salesbot/agent/contract"
	statex "github.com/tanpawarit/asic-salesbot/agent/state"
)

var _ contractx.CatalogStore = (*StaticStore)(nil)

type Row struct {
	ID     statex.RowID      `json:"row"`
	Name   string            `json:"name"`
	Fields map[string]string `json:"fields"`
}

// StaticStore serves a fixed in-memory catalog. It is read-only after
// construction.
type StaticStore struct {
	rows map[statex.RowID]Row
}

func NewStaticStore(rows ...Row) *StaticStore {
	m := make(map[statex.RowID]Row, len(rows))
	for _, r := range rows {
		fields := make(map[string]string, len(r.Fields))
		for k, v := range r.Fields {
			fields[k] = v
		}
		r.Fields = fields
		m[r.ID] = r
	}
	return &StaticStore{rows: m}
}

// LoadStaticFile reads a JSON array of rows.
func LoadStaticFile(path string) (*StaticStore, error) {
	raw, err := os.ReadFile(strings.TrimSpace(path))
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var rows []Row
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode catalog file: %w", err)
	}
	for _, r := range rows {
		if r.ID <= 0 {
			return nil, fmt.Errorf("%w: catalog row id must be positive, got %d", contractx.ErrValidation, r.ID)
		}
	}
	return NewStaticStore(rows...), nil
}

func (s *StaticStore) List(context.Context) (map[statex.RowID]string, error) {
	out := make(map[statex.RowID]string, len(s.rows))
	for id, r := range s.rows {
		out[id] = r.Name
	}
	return out, nil
}

func (s *StaticStore) Fields(_ context.Context, row statex.RowID, names []string) (map[string]string, error) {
	r, ok := s.rows[row]
	if !ok {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(names))
	if len(names) == 0 {
		for k, v := range r.Fields {
			out[k] = v
		}
		return out, nil
	}
	for _, name := range names {
		if v, ok := r.Fields[name]; ok {
			out[name] = v
		}
	}
	return out, nil
}
