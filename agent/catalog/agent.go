package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	contractx "github.com/tanpawarit/asic-salesbot/agent/contract"
	statex "github.com/tanpawarit/asic-salesbot/agent/state"
)

const DefaultGroupThreshold = 7

var _ contractx.CatalogAgent = (*Agent)(nil)

// batchFielder is implemented by stores that can fetch many rows at once.
type batchFielder interface {
	FieldsBatch(ctx context.Context, rows []statex.RowID, names []string) (map[statex.RowID]map[string]string, error)
}

// Agent answers catalog questions. Index assignment, filtering and grouping
// are deterministic; the optional phraser only rewrites the finished draft.
type Agent struct {
	store     contractx.CatalogStore
	schema    Schema
	threshold int
	phraser   contractx.Responder
}

type Option func(*Agent)

func WithSchema(s Schema) Option {
	return func(a *Agent) { a.schema = s.withDefaults() }
}

func WithGroupThreshold(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.threshold = n
		}
	}
}

// WithPhraser lets a model rephrase drafts using the windowed memory.
func WithPhraser(r contractx.Responder) Option {
	return func(a *Agent) { a.phraser = r }
}

func NewAgent(store contractx.CatalogStore, opts ...Option) (*Agent, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: catalog store is required", contractx.ErrValidation)
	}
	a := &Agent{
		store:     store,
		schema:    DefaultSchema(),
		threshold: DefaultGroupThreshold,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

type candidate struct {
	row    statex.RowID
	name   string
	fields map[string]string
}

func (c candidate) value(schema Schema, key string) string {
	if key == FieldModel {
		return c.name
	}
	return strings.TrimSpace(c.fields[schema.Column(key)])
}

func (a *Agent) Handle(ctx context.Context, req contractx.CatalogRequest) (contractx.CatalogResponse, error) {
	if req.Session == nil {
		return contractx.CatalogResponse{}, fmt.Errorf("%w: catalog session is nil", contractx.ErrValidation)
	}

	var (
		resp contractx.CatalogResponse
		err  error
	)
	if numbers := selectionNumbers(req.UserMessage, req.Delta); len(numbers) > 0 {
		resp, err = a.handleSelection(ctx, req.Session, numbers)
	} else {
		resp, err = a.handleListing(ctx, req)
	}
	if err != nil {
		return contractx.CatalogResponse{}, err
	}

	log.Ctx(ctx).Debug().
		Str("mode", string(resp.Mode)).
		Int("candidates", resp.Listed).
		Ints("unknown", resp.Unknown).
		Msg("catalog draft ready")

	resp.Draft = a.phrase(ctx, req, resp.Draft)
	return resp, nil
}

func (a *Agent) handleSelection(ctx context.Context, session *statex.CatalogSession, numbers []int) (contractx.CatalogResponse, error) {
	listing, err := a.store.List(ctx)
	if err != nil {
		return contractx.CatalogResponse{}, wrapUnavailable(err)
	}

	res := session.Index.Resolve(numbers, func(r statex.RowID) bool {
		_, ok := listing[r]
		return ok
	})
	rows := lo.Uniq(res.Rows)

	resp := contractx.CatalogResponse{
		Mode:    contractx.CatalogModeSelected,
		Listed:  len(rows),
		Unknown: res.Unknown,
	}
	if len(rows) == 0 {
		resp.Draft = renderUnknownOnly(res.Unknown, session.Index.Len())
		return resp, nil
	}

	details, err := a.fetch(ctx, rows, a.schema.detailColumns())
	if err != nil {
		return contractx.CatalogResponse{}, err
	}

	picked := make([]candidate, 0, len(rows))
	for _, row := range rows {
		picked = append(picked, candidate{row: row, name: listing[row], fields: details[row]})
	}
	resp.Draft = renderSelection(a.schema, picked, res.Unknown)
	return resp, nil
}

func (a *Agent) handleListing(ctx context.Context, req contractx.CatalogRequest) (contractx.CatalogResponse, error) {
	session := req.Session

	listing, err := a.store.List(ctx)
	if err != nil {
		return contractx.CatalogResponse{}, wrapUnavailable(err)
	}
	if len(listing) == 0 {
		session.Index.Clear()
		session.ClearGrouping()
		session.ResetFilters()
		return contractx.CatalogResponse{
			Mode:  contractx.CatalogModeEmpty,
			Draft: "Каталог сейчас пуст: данные о наличии обновляются. Можно оставить контакт, и менеджер пришлёт актуальный список.",
		}, nil
	}

	filters := nextFilters(session, req.UserMessage, req.Delta)

	rows := lo.Keys(listing)
	sort.Slice(rows, func(i, j int) bool { return rows[i] < rows[j] })

	fields, err := a.fetch(ctx, rows, a.schema.listingColumns())
	if err != nil {
		return contractx.CatalogResponse{}, err
	}

	all := make([]candidate, 0, len(rows))
	for _, row := range rows {
		all = append(all, candidate{row: row, name: listing[row], fields: fields[row]})
	}
	candidates := lo.Filter(all, func(c candidate, _ int) bool {
		for key, want := range filters {
			if !matches(c.value(a.schema, key), want) {
				return false
			}
		}
		return true
	})

	if len(candidates) == 0 {
		session.Index.Clear()
		session.ClearGrouping()
		session.ResetFilters()
		return contractx.CatalogResponse{
			Mode:  contractx.CatalogModeEmpty,
			Draft: renderNoMatch(filters, len(all)),
		}, nil
	}

	mapping := make(map[statex.DisplayIndex]statex.RowID, len(candidates))
	for i, c := range candidates {
		mapping[statex.DisplayIndex(i+1)] = c.row
	}
	session.Index.Store(mapping)
	session.Filters = filters

	if len(candidates) > a.threshold {
		if field, groups, ok := a.groupBy(candidates, filters); ok {
			session.GroupField = field
			session.GroupValues = lo.FilterMap(groups, func(g group, _ int) (string, bool) {
				return g.name, g.name != otherGroup
			})
			return contractx.CatalogResponse{
				Mode:   contractx.CatalogModeGrouped,
				Listed: len(candidates),
				Draft:  renderGroups(field, groups, len(candidates)),
			}, nil
		}
	}

	session.ClearGrouping()
	return contractx.CatalogResponse{
		Mode:   contractx.CatalogModeListed,
		Listed: len(candidates),
		Draft:  renderListing(candidates),
	}, nil
}

// nextFilters narrows the previous listing when the customer answers the
// grouping question or adds a constraint to it; any other query starts over.
func nextFilters(session *statex.CatalogSession, message string, delta statex.Entities) map[string]string {
	fresh := make(map[string]string, len(entityFilters))
	for entity, key := range entityFilters {
		if v := strings.TrimSpace(delta.Get(entity)); v != "" {
			fresh[key] = v
		}
	}

	pickField, pickValue := pickGroupValue(session, message)
	refining := pickValue != "" || (len(fresh) > 0 && session.GroupField != "")

	out := make(map[string]string, len(fresh)+len(session.Filters)+1)
	if refining {
		for k, v := range session.Filters {
			out[k] = v
		}
	}
	if pickValue != "" {
		out[pickField] = pickValue
	}
	for k, v := range fresh {
		out[k] = v
	}
	return out
}

// pickGroupValue finds the longest group name of the previous grouped
// listing mentioned in message.
func pickGroupValue(session *statex.CatalogSession, message string) (string, string) {
	if session.GroupField == "" || len(session.GroupValues) == 0 {
		return "", ""
	}
	text := fold(message)
	best := ""
	for _, v := range session.GroupValues {
		fv := fold(v)
		if fv == "" || !strings.Contains(text, fv) {
			continue
		}
		if len(fv) > len(fold(best)) {
			best = v
		}
	}
	if best == "" {
		return "", ""
	}
	return session.GroupField, best
}

func (a *Agent) fetch(ctx context.Context, rows []statex.RowID, names []string) (map[statex.RowID]map[string]string, error) {
	if batch, ok := a.store.(batchFielder); ok {
		out, err := batch.FieldsBatch(ctx, rows, names)
		if err != nil {
			return nil, wrapUnavailable(err)
		}
		return out, nil
	}

	out := make(map[statex.RowID]map[string]string, len(rows))
	for _, row := range rows {
		fields, err := a.store.Fields(ctx, row, names)
		if err != nil {
			return nil, wrapUnavailable(err)
		}
		out[row] = fields
	}
	return out, nil
}

func (a *Agent) phrase(ctx context.Context, req contractx.CatalogRequest, draft string) string {
	if a.phraser == nil || strings.TrimSpace(draft) == "" {
		return draft
	}
	out, err := a.phraser.Respond(ctx, contractx.ResponderRequest{
		UserMessage: req.UserMessage,
		Intent:      contractx.IntentCatalogQuery,
		Memory:      req.Memory,
		Draft:       draft,
	})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("catalog phrasing failed, using plain draft")
		return draft
	}
	if phrased := strings.TrimSpace(out.Draft); phrased != "" {
		return phrased
	}
	return draft
}

func wrapUnavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, contractx.ErrCatalogUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", contractx.ErrCatalogUnavailable, err)
}
