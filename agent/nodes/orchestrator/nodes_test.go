package orchestratornode

import (
	"context"
	"errors"
	"testing"
	"time"

	contractx "github.com/tanpawarit/asic-salesbot/agent/contract"
	statex "github.com/tanpawarit/asic-salesbot/agent/state"
)

type stubClassifier struct {
	out contractx.Classification
	req contractx.ClassifyRequest
}

func (s *stubClassifier) Classify(ctx context.Context, req contractx.ClassifyRequest) (contractx.Classification, error) {
	s.req = req
	return s.out, nil
}

func TestRoute(t *testing.T) {
	t.Parallel()

	cases := map[contractx.Intent]string{
		contractx.IntentCatalogQuery: NodeDispatchCatalog,
		contractx.IntentObjection:    NodeDispatchObjection,
		contractx.IntentPresentation: NodeDispatchPresentation,
		contractx.IntentScheduleCall: NodeDispatchScheduleCall,
		contractx.IntentGreeting:     NodeDispatchDirect,
		contractx.IntentOther:        NodeDispatchDirect,
	}
	for intent, want := range cases {
		got, err := Route(&GraphState{Classification: contractx.Classification{Intent: intent}})
		if err != nil {
			t.Fatalf("Route(%s) error = %v", intent, err)
		}
		if got != want {
			t.Fatalf("Route(%s) = %s, want %s", intent, got, want)
		}
	}
	if _, err := Route(nil); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for nil state, got %v", err)
	}
}

func TestClassifyIntentDropsForeignEntities(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := statex.NewSessionState("s-1", "chat", now)
	for i := 0; i < 5; i++ {
		st.Memory.Append(statex.RoleUser, "вопрос", now)
		st.Memory.Append(statex.RoleAssistant, "ответ", now)
	}
	st.Memory.Remember(statex.Entities{statex.EntityName: "Олег"})

	stub := &stubClassifier{out: contractx.Classification{
		Intent: "Objection",
		Entities: statex.Entities{
			statex.EntityObjectionType: "roi",
			statex.EntityBrand:         "Bitmain",
		},
	}}

	out, err := ClassifyIntent(context.Background(), &GraphState{Text: "не окупится", Session: st}, stub, 2)
	if err != nil {
		t.Fatalf("ClassifyIntent() error = %v", err)
	}
	if out.Classification.Intent != contractx.IntentObjection {
		t.Fatalf("intent = %q", out.Classification.Intent)
	}
	if _, ok := out.Classification.Entities[statex.EntityBrand]; ok {
		t.Fatal("brand is not allowed for objection")
	}
	if len(stub.req.Recent) != 4 {
		t.Fatalf("classifier saw %d turns, want 4", len(stub.req.Recent))
	}
	if stub.req.Known.Get(statex.EntityName) != "Олег" {
		t.Fatal("known entities missing")
	}
}

func TestApplyMemoryRequiresReply(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := &GraphState{
		Text:    "привет",
		Now:     now,
		Session: statex.NewSessionState("s-1", "chat", now),
		Classification: contractx.Classification{
			Intent:   contractx.IntentGreeting,
			Entities: statex.Entities{statex.EntityName: "Иван", statex.EntityPhone: ""},
		},
	}

	if _, err := ApplyMemory(in); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty reply, got %v", err)
	}
	if len(in.Session.Memory.Turns) != 0 {
		t.Fatal("memory must stay untouched on failure")
	}

	in.Reply = "Здравствуйте, Иван!"
	if _, err := ApplyMemory(in); err != nil {
		t.Fatalf("ApplyMemory() error = %v", err)
	}
	if len(in.Session.Memory.Turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(in.Session.Memory.Turns))
	}
	if _, ok := in.Session.Memory.Entities[statex.EntityPhone]; ok {
		t.Fatal("empty entity values must not be stored")
	}
	if in.Session.Memory.Entities.Get(statex.EntityName) != "Иван" {
		t.Fatal("name not remembered")
	}
}
