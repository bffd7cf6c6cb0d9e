package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	contractx "github.com/tanpawarit/asic-salesbot/agent/contract"
	statex "github.com/tanpawarit/asic-salesbot/agent/state"
)

func testRows() []Row {
	mk := func(id int, name, brand, series, cond, price string) Row {
		return Row{
			ID:   statex.RowID(id),
			Name: name,
			Fields: map[string]string{
				"Производитель": brand,
				"Линейка":       series,
				"Состояние":     cond,
				"Цена":          price,
				"Хэшрейт":       "100 TH/s",
				"Потребление":   "3250 W",
			},
		}
	}
	return []Row{
		mk(2, "Antminer S19 95T", "Bitmain", "S19", "новый", "1500$"),
		mk(3, "Antminer S19 Pro 110T", "Bitmain", "S19", "б/у", "1700$"),
		mk(4, "Antminer S19j Pro 104T", "Bitmain", "S19", "новый", "1650$"),
		mk(5, "Antminer S19 XP 140T", "Bitmain", "S19", "новый", "3200$"),
		mk(6, "Antminer S21 200T", "Bitmain", "S21", "новый", "5200$"),
		mk(7, "Antminer S21 Pro 234T", "Bitmain", "S21", "новый", "6100$"),
		mk(8, "WhatsMiner M30S 88T", "WhatsMiner", "M30", "б/у", "900$"),
		mk(9, "WhatsMiner M50 118T", "WhatsMiner", "M50", "новый", "2300$"),
		mk(10, "WhatsMiner M60 172T", "WhatsMiner", "M60", "новый", "3900$"),
		mk(11, "Avalon A1366 130T", "Canaan", "A13", "новый", "2100$"),
	}
}

func newTestAgent(t *testing.T, opts ...Option) *Agent {
	t.Helper()
	a, err := NewAgent(NewStaticStore(testRows()...), opts...)
	if err != nil {
		t.Fatalf("NewAgent() error = %v", err)
	}
	return a
}

func handle(t *testing.T, a *Agent, session *statex.CatalogSession, msg string, delta statex.Entities) contractx.CatalogResponse {
	t.Helper()
	resp, err := a.Handle(context.Background(), contractx.CatalogRequest{
		UserMessage: msg,
		Delta:       delta,
		Session:     session,
	})
	if err != nil {
		t.Fatalf("Handle(%q) error = %v", msg, err)
	}
	return resp
}

var listingLine = regexp.MustCompile(`(?m)^\[(\d+)\] (.+)$`)

// assertListingMatchesIndex checks that every "[i] name" line points at the
// row the index map stores for i.
func assertListingMatchesIndex(t *testing.T, draft string, session *statex.CatalogSession) {
	t.Helper()
	names := map[statex.RowID]string{}
	for _, r := range testRows() {
		names[r.ID] = r.Name
	}
	lines := listingLine.FindAllStringSubmatch(draft, -1)
	if len(lines) != session.Index.Len() {
		t.Fatalf("draft lists %d items, index map has %d", len(lines), session.Index.Len())
	}
	for _, m := range lines {
		idx, _ := strconv.Atoi(m[1])
		row, ok := session.Index.Lookup(statex.DisplayIndex(idx))
		if !ok {
			t.Fatalf("display index %d missing from index map", idx)
		}
		if names[row] != m[2] {
			t.Fatalf("index %d shows %q but maps to %q", idx, m[2], names[row])
		}
	}
}

func TestHandleGroupsLargeCatalogByBrand(t *testing.T) {
	t.Parallel()

	a := newTestAgent(t)
	session := &statex.CatalogSession{Index: statex.IndexMap{}}

	resp := handle(t, a, session, "какие асики есть?", nil)
	if resp.Mode != contractx.CatalogModeGrouped {
		t.Fatalf("mode = %s, want grouped", resp.Mode)
	}
	if resp.Listed != 10 || session.Index.Len() != 10 {
		t.Fatalf("listed=%d index=%d, want 10", resp.Listed, session.Index.Len())
	}
	for _, want := range []string{"Bitmain (6)", "WhatsMiner (3)", "Canaan (1)", "Какой бренд"} {
		if !strings.Contains(resp.Draft, want) {
			t.Fatalf("draft missing %q:\n%s", want, resp.Draft)
		}
	}
	if session.GroupField != FieldBrand {
		t.Fatalf("group field = %q", session.GroupField)
	}
	if strings.Join(session.GroupValues, ",") != "Bitmain,WhatsMiner,Canaan" {
		t.Fatalf("group values = %v", session.GroupValues)
	}
	if row, _ := session.Index.Lookup(1); row != 2 {
		t.Fatalf("index 1 -> row %d, want 2", row)
	}
}

func TestHandleGroupCountsSumToTotal(t *testing.T) {
	t.Parallel()

	a := newTestAgent(t, WithGroupThreshold(3))
	session := &statex.CatalogSession{Index: statex.IndexMap{}}

	handle(t, a, session, "что есть?", nil)
	resp := handle(t, a, session, "bitmain", nil)
	if resp.Mode != contractx.CatalogModeGrouped {
		t.Fatalf("mode = %s, want grouped by series", resp.Mode)
	}
	if session.GroupField != FieldSeries {
		t.Fatalf("group field = %q, want series", session.GroupField)
	}

	total := 0
	for _, m := range regexp.MustCompile(`\((\d+)\)`).FindAllStringSubmatch(resp.Draft, -1) {
		n, _ := strconv.Atoi(m[1])
		total += n
	}
	if total != resp.Listed || total != 6 {
		t.Fatalf("group counts sum to %d, listed %d, want 6", total, resp.Listed)
	}
}

func TestHandleGroupPickNarrowsToListing(t *testing.T) {
	t.Parallel()

	a := newTestAgent(t)
	session := &statex.CatalogSession{Index: statex.IndexMap{}}

	handle(t, a, session, "какие есть модели", nil)
	resp := handle(t, a, session, "давай whatsminer", nil)

	if resp.Mode != contractx.CatalogModeListed {
		t.Fatalf("mode = %s, want listed", resp.Mode)
	}
	if session.Index.Len() != 3 {
		t.Fatalf("index map has %d entries, want 3", session.Index.Len())
	}
	if session.Filters[FieldBrand] != "WhatsMiner" {
		t.Fatalf("filters = %v", session.Filters)
	}
	if session.GroupField != "" {
		t.Fatalf("grouping not cleared: %q", session.GroupField)
	}
	assertListingMatchesIndex(t, resp.Draft, session)
	if row, _ := session.Index.Lookup(1); row != 8 {
		t.Fatalf("index 1 -> row %d, want 8", row)
	}
}

func TestHandleSelectionResolvesThroughIndexMap(t *testing.T) {
	t.Parallel()

	a := newTestAgent(t)
	session := &statex.CatalogSession{Index: statex.IndexMap{}}

	handle(t, a, session, "покажи", statex.Entities{statex.EntityBrand: "WhatsMiner"})
	resp := handle(t, a, session, "2", nil)

	if resp.Mode != contractx.CatalogModeSelected {
		t.Fatalf("mode = %s, want selected", resp.Mode)
	}
	if !strings.Contains(resp.Draft, "WhatsMiner M50 118T") || !strings.Contains(resp.Draft, "2300$") {
		t.Fatalf("selection draft = %q", resp.Draft)
	}
	if strings.Contains(resp.Draft, "Antminer S19 Pro") {
		t.Fatal("index 2 resolved as raw row 3")
	}
	if session.Index.Len() != 3 {
		t.Fatal("selection must not replace the listing")
	}
}

func TestHandleSelectionFromEntityAndUnknownNumbers(t *testing.T) {
	t.Parallel()

	a := newTestAgent(t)
	session := &statex.CatalogSession{Index: statex.IndexMap{}}

	handle(t, a, session, "whatsminer", statex.Entities{statex.EntityBrand: "WhatsMiner"})
	resp := handle(t, a, session, "хочу первый и сорок второй", statex.Entities{statex.EntitySelection: "1, 42"})

	if len(resp.Unknown) != 1 || resp.Unknown[0] != 42 {
		t.Fatalf("unknown = %v, want [42]", resp.Unknown)
	}
	if !strings.Contains(resp.Draft, "WhatsMiner M30S 88T") {
		t.Fatalf("draft missing selected model: %q", resp.Draft)
	}
	if !strings.Contains(resp.Draft, "42") {
		t.Fatalf("draft does not surface unknown number: %q", resp.Draft)
	}
}

func TestHandleSelectionRawRowPassThrough(t *testing.T) {
	t.Parallel()

	a := newTestAgent(t)
	session := &statex.CatalogSession{Index: statex.IndexMap{}}
	session.Index.Store(map[statex.DisplayIndex]statex.RowID{1: 8})

	resp := handle(t, a, session, "11", nil)
	if !strings.Contains(resp.Draft, "Avalon A1366") {
		t.Fatalf("raw row id not passed through: %q", resp.Draft)
	}
}

func TestHandleSelectionNothingResolved(t *testing.T) {
	t.Parallel()

	a := newTestAgent(t)
	session := &statex.CatalogSession{Index: statex.IndexMap{}}
	session.Index.Store(map[statex.DisplayIndex]statex.RowID{1: 8, 2: 9})

	resp := handle(t, a, session, "77", nil)
	if resp.Listed != 0 || len(resp.Unknown) != 1 {
		t.Fatalf("resp = %#v", resp)
	}
	if !strings.Contains(resp.Draft, "от 1 до 2") {
		t.Fatalf("draft = %q", resp.Draft)
	}
}

func TestHandleFreshQueryResetsFilters(t *testing.T) {
	t.Parallel()

	a := newTestAgent(t)
	session := &statex.CatalogSession{Index: statex.IndexMap{}}

	handle(t, a, session, "whatsminer", statex.Entities{statex.EntityBrand: "WhatsMiner"})
	resp := handle(t, a, session, "а что ещё есть?", nil)

	if resp.Mode != contractx.CatalogModeGrouped || resp.Listed != 10 {
		t.Fatalf("mode=%s listed=%d, want grouped over full catalog", resp.Mode, resp.Listed)
	}
	if len(session.Filters) != 0 {
		t.Fatalf("filters not reset: %v", session.Filters)
	}
}

func TestHandleConditionFilterFoldsPunctuation(t *testing.T) {
	t.Parallel()

	a := newTestAgent(t)
	session := &statex.CatalogSession{Index: statex.IndexMap{}}

	resp := handle(t, a, session, "есть бушные?", statex.Entities{statex.EntityCondition: "бу"})
	if resp.Mode != contractx.CatalogModeListed || resp.Listed != 2 {
		t.Fatalf("mode=%s listed=%d, want 2 used units", resp.Mode, resp.Listed)
	}
	assertListingMatchesIndex(t, resp.Draft, session)
}

func TestHandleNoMatchIsExplained(t *testing.T) {
	t.Parallel()

	a := newTestAgent(t)
	session := &statex.CatalogSession{Index: statex.IndexMap{}}
	session.Index.Store(map[statex.DisplayIndex]statex.RowID{1: 2})

	resp := handle(t, a, session, "innosilicon есть?", statex.Entities{statex.EntityBrand: "Innosilicon"})
	if resp.Mode != contractx.CatalogModeEmpty {
		t.Fatalf("mode = %s, want empty", resp.Mode)
	}
	if !strings.Contains(resp.Draft, "Innosilicon") {
		t.Fatalf("draft = %q", resp.Draft)
	}
	if session.Index.Len() != 0 {
		t.Fatal("stale listing survived a listing with no matches")
	}
}

func TestHandleEmptyCatalog(t *testing.T) {
	t.Parallel()

	a, err := NewAgent(NewStaticStore())
	if err != nil {
		t.Fatal(err)
	}
	session := &statex.CatalogSession{Index: statex.IndexMap{}}

	resp := handle(t, a, session, "что есть?", nil)
	if resp.Mode != contractx.CatalogModeEmpty || resp.Draft == "" {
		t.Fatalf("resp = %#v", resp)
	}
}

type failingStore struct{}

func (failingStore) List(context.Context) (map[statex.RowID]string, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) Fields(context.Context, statex.RowID, []string) (map[string]string, error) {
	return nil, errors.New("connection refused")
}

func TestHandleStoreFailure(t *testing.T) {
	t.Parallel()

	a, err := NewAgent(failingStore{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = a.Handle(context.Background(), contractx.CatalogRequest{
		UserMessage: "что есть?",
		Session:     &statex.CatalogSession{Index: statex.IndexMap{}},
	})
	if !errors.Is(err, contractx.ErrCatalogUnavailable) {
		t.Fatalf("Handle() error = %v, want ErrCatalogUnavailable", err)
	}
}

type recordingPhraser struct {
	reqs []contractx.ResponderRequest
	err  error
}

func (p *recordingPhraser) Respond(_ context.Context, req contractx.ResponderRequest) (contractx.ResponderResponse, error) {
	p.reqs = append(p.reqs, req)
	if p.err != nil {
		return contractx.ResponderResponse{}, p.err
	}
	return contractx.ResponderResponse{Draft: "phrased: " + req.Draft}, nil
}

func TestHandlePhraserReceivesWindowedMemory(t *testing.T) {
	t.Parallel()

	phraser := &recordingPhraser{}
	a := newTestAgent(t, WithPhraser(phraser))

	var mem statex.Memory
	for i := 0; i < 6; i++ {
		mem.Append(statex.RoleUser, fmt.Sprintf("q%d", i), testNow)
		mem.Append(statex.RoleAssistant, fmt.Sprintf("a%d", i), testNow)
	}
	view := mem.Window(statex.CatalogWindowExchanges)

	resp, err := a.Handle(context.Background(), contractx.CatalogRequest{
		UserMessage: "что есть?",
		Memory:      view,
		Session:     &statex.CatalogSession{Index: statex.IndexMap{}},
	})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !strings.HasPrefix(resp.Draft, "phrased: ") {
		t.Fatalf("draft not phrased: %q", resp.Draft)
	}
	if len(phraser.reqs) != 1 || len(phraser.reqs[0].Memory.Turns) != 6 {
		t.Fatalf("phraser saw %d turns, want 6", len(phraser.reqs[0].Memory.Turns))
	}
}

func TestHandlePhraserFailureFallsBackToDraft(t *testing.T) {
	t.Parallel()

	a := newTestAgent(t, WithPhraser(&recordingPhraser{err: errors.New("timeout")}))
	resp := handle(t, a, &statex.CatalogSession{Index: statex.IndexMap{}}, "что есть?", nil)
	if !strings.Contains(resp.Draft, "Bitmain (6)") {
		t.Fatalf("draft = %q", resp.Draft)
	}
}

func TestSelectionNumbers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		msg   string
		delta statex.Entities
		want  []int
	}{
		{msg: "1, 3", want: []int{1, 3}},
		{msg: "№2 и 5", want: []int{2, 5}},
		{msg: "S19 на 110 TH", want: nil},
		{msg: "любой", delta: statex.Entities{statex.EntitySelection: "4"}, want: []int{4}},
		{msg: "0", want: []int{}},
	}
	for _, tc := range cases {
		got := selectionNumbers(tc.msg, tc.delta)
		if fmt.Sprint(got) != fmt.Sprint(tc.want) {
			t.Fatalf("selectionNumbers(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}

var testNow = time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
