package specialist

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/asic-salesbot/agent/contract"
	promptx "github.com/tanpawarit/asic-salesbot/agent/prompt"
	statex "github.com/tanpawarit/asic-salesbot/agent/state"
)

type fakeToolCallingModel struct {
	mu        sync.Mutex
	responses []*schema.Message
	err       error
	idx       int
	inputs    [][]*schema.Message
}

func (f *fakeToolCallingModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	if f.idx >= len(f.responses) {
		return nil, errors.New("no fake response left")
	}
	msg := f.responses[f.idx]
	f.idx++
	return msg, nil
}

func (f *fakeToolCallingModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *fakeToolCallingModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return f, nil
}

func (f *fakeToolCallingModel) lastUserInput() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		return ""
	}
	msgs := f.inputs[len(f.inputs)-1]
	return msgs[len(msgs)-1].Content
}

func reply(content string) *fakeToolCallingModel {
	return &fakeToolCallingModel{responses: []*schema.Message{{Role: schema.Assistant, Content: content}}}
}

func classify(t *testing.T, fake *fakeToolCallingModel, msg string) contractx.Classification {
	t.Helper()
	c, err := newClassifier(context.Background(), fake, "classifier prompt")
	if err != nil {
		t.Fatalf("newClassifier() error = %v", err)
	}
	out, err := c.Classify(context.Background(), contractx.ClassifyRequest{UserMessage: msg})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	return out
}

func TestClassifierScheduleCallWithPhone(t *testing.T) {
	t.Parallel()

	fake := reply(`{"intent":"schedule_call","entities":{"phone":"8 (999) 123-45-67"}}`)
	out := classify(t, fake, "Перейдём к звонку, вот мой телефон 89991234567")

	if out.Intent != contractx.IntentScheduleCall {
		t.Fatalf("intent = %s", out.Intent)
	}
	if out.Entities[statex.EntityPhone] != "89991234567" {
		t.Fatalf("phone = %q", out.Entities[statex.EntityPhone])
	}
	if !strings.Contains(fake.lastUserInput(), "89991234567") {
		t.Fatal("user message not forwarded to the model")
	}
}

func TestClassifierToleratesFencesAndProse(t *testing.T) {
	t.Parallel()

	fake := reply("Вот результат:\n```json\n{\"intent\":\"catalog_query\",\"entities\":{\"brand\":\"Bitmain\",\"selection\":[1,3]}}\n```")
	out := classify(t, fake, "покажи bitmain, номера 1 и 3")

	if out.Intent != contractx.IntentCatalogQuery {
		t.Fatalf("intent = %s", out.Intent)
	}
	if out.Entities[statex.EntityBrand] != "Bitmain" {
		t.Fatalf("brand = %q", out.Entities[statex.EntityBrand])
	}
	if out.Entities[statex.EntitySelection] != "1,3" {
		t.Fatalf("selection = %q", out.Entities[statex.EntitySelection])
	}
}

func TestClassifierFallsBackToOther(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"не знаю",
		`{"intent":"buy_now","entities":{}}`,
		`{"intent":"objection"}`,
		`{"entities":{"name":"Иван"}}`,
		`{"intent":"greeting","entities":`,
	} {
		out := classify(t, reply(raw), "привет")
		if out.Intent != contractx.IntentOther || len(out.Entities) != 0 {
			t.Fatalf("raw %q parsed as %#v", raw, out)
		}
	}
}

func TestClassifierDropsDisallowedAndInvalidEntities(t *testing.T) {
	t.Parallel()

	out := classify(t, reply(`{"intent":"objection","entities":{"objection_type":"scam","phone":"89991234567"}}`), "это развод")
	if out.Intent != contractx.IntentObjection {
		t.Fatalf("intent = %s", out.Intent)
	}
	if len(out.Entities) != 0 {
		t.Fatalf("entities = %#v, want none", out.Entities)
	}

	out = classify(t, reply(`{"intent":"objection","entities":{"objection_type":"Noise"}}`), "сильно шумит?")
	if out.Entities[statex.EntityObjectionType] != "noise" {
		t.Fatalf("objection_type = %q", out.Entities[statex.EntityObjectionType])
	}

	out = classify(t, reply(`{"intent":"schedule_call","entities":{"telegram":"@miner_pro","email":"not-an-email","phone":"12"}}`), "пишите в телегу")
	if out.Entities[statex.EntityTelegram] != "@miner_pro" {
		t.Fatalf("telegram = %q", out.Entities[statex.EntityTelegram])
	}
	if _, ok := out.Entities[statex.EntityEmail]; ok {
		t.Fatal("invalid email kept")
	}
	if _, ok := out.Entities[statex.EntityPhone]; ok {
		t.Fatal("too short phone kept")
	}
}

func TestClassifierKeepsPlusInPhone(t *testing.T) {
	t.Parallel()

	out := classify(t, reply(`{"intent":"schedule_call","entities":{"phone":"+7 999 123-45-67"}}`), "+7 999 123-45-67")
	if out.Entities[statex.EntityPhone] != "+79991234567" {
		t.Fatalf("phone = %q", out.Entities[statex.EntityPhone])
	}
}

func TestClassifierModelFailure(t *testing.T) {
	t.Parallel()

	c, err := newClassifier(context.Background(), &fakeToolCallingModel{err: errors.New("503")}, "classifier prompt")
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Classify(context.Background(), contractx.ClassifyRequest{UserMessage: "привет"})
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("Classify() error = %v, want ErrModelInvoke", err)
	}

	_, err = c.Classify(context.Background(), contractx.ClassifyRequest{UserMessage: "  "})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Classify() error = %v, want ErrValidation", err)
	}
}

func TestMergerFinalAnswerMarker(t *testing.T) {
	t.Parallel()

	cases := []struct {
		model string
		draft string
		want  string
	}{
		{model: "Thought: I now know\nFinal Answer: Добрый день! Вот модели.", draft: "[1] S19", want: "Добрый день! Вот модели."},
		{model: "Здравствуйте! Чем помочь?", draft: "", want: "Здравствуйте! Чем помочь?"},
		{model: "   ", draft: "[1] S19", want: "[1] S19"},
	}
	for _, tc := range cases {
		m, err := newMerger(context.Background(), reply(tc.model), "merge prompt")
		if err != nil {
			t.Fatal(err)
		}
		got, err := m.Merge(context.Background(), contractx.MergeRequest{
			UserMessage: "что есть?",
			Intent:      contractx.IntentCatalogQuery,
			Draft:       tc.draft,
		})
		if err != nil {
			t.Fatalf("Merge() error = %v", err)
		}
		if got != tc.want {
			t.Fatalf("Merge() = %q, want %q", got, tc.want)
		}
	}
}

func TestMergerEmptyEverything(t *testing.T) {
	t.Parallel()

	m, err := newMerger(context.Background(), reply("Final Answer:"), "merge prompt")
	if err != nil {
		t.Fatal(err)
	}
	_, err = m.Merge(context.Background(), contractx.MergeRequest{UserMessage: "привет", Intent: contractx.IntentGreeting})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Merge() error = %v, want ErrValidation", err)
	}
}

func TestResponderSendsMemoryAndObjectionType(t *testing.T) {
	t.Parallel()

	fake := reply("Понимаю, шум решается выносом в отдельное помещение. Где планируете ставить?")
	r, err := newResponder(context.Background(), contractx.AgentTypeObjection, fake, "objection prompt")
	if err != nil {
		t.Fatal(err)
	}

	var mem statex.Memory
	mem.Remember(statex.Entities{statex.EntityObjectionType: "noise", statex.EntityName: "Олег"})
	resp, err := r.Respond(context.Background(), contractx.ResponderRequest{
		UserMessage: "он же шумный",
		Intent:      contractx.IntentObjection,
		Memory:      mem.Window(statex.DefaultHistoryExchanges),
	})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if !strings.HasPrefix(resp.Draft, "Понимаю") {
		t.Fatalf("draft = %q", resp.Draft)
	}
	input := fake.lastUserInput()
	if !strings.Contains(input, `"objection_type":"noise"`) || !strings.Contains(input, "Олег") {
		t.Fatalf("payload = %s", input)
	}
}

func TestResponderEmptyOutputIsSchemaViolation(t *testing.T) {
	t.Parallel()

	r, err := newResponder(context.Background(), contractx.AgentTypePresentation, reply(""), "presentation prompt")
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.Respond(context.Background(), contractx.ResponderRequest{UserMessage: "кто вы?"})
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("Respond() error = %v, want ErrSchemaViolation", err)
	}
}

func TestNewRegistryWithModels(t *testing.T) {
	t.Parallel()

	var built []contractx.AgentType
	var mu sync.Mutex
	factory := func(ctx context.Context, agentType contractx.AgentType) (einomodel.BaseChatModel, error) {
		mu.Lock()
		built = append(built, agentType)
		mu.Unlock()
		return &fakeToolCallingModel{}, nil
	}

	reg, err := NewRegistryWithModels(context.Background(), promptx.LoadPromptSet(), factory)
	if err != nil {
		t.Fatalf("NewRegistryWithModels() error = %v", err)
	}
	if len(built) != 6 {
		t.Fatalf("built %d models, want 6", len(built))
	}
	for _, intent := range []contractx.Intent{contractx.IntentObjection, contractx.IntentPresentation, contractx.IntentScheduleCall} {
		if _, ok := reg.Responder(intent); !ok {
			t.Fatalf("no responder for %s", intent)
		}
	}
	if _, ok := reg.Responder(contractx.IntentGreeting); ok {
		t.Fatal("greeting must be answered by the merger")
	}
	if reg.Classifier() == nil || reg.Merger() == nil || reg.CatalogPhraser() == nil {
		t.Fatal("registry incomplete")
	}
}

func TestNewRegistryWithModelsMissingPrompt(t *testing.T) {
	t.Parallel()

	prompts := promptx.LoadPromptSet()
	prompts.Objection = ""
	_, err := NewRegistryWithModels(context.Background(), prompts, func(context.Context, contractx.AgentType) (einomodel.BaseChatModel, error) {
		return &fakeToolCallingModel{}, nil
	})
	if !errors.Is(err, contractx.ErrPromptMissing) {
		t.Fatalf("error = %v, want ErrPromptMissing", err)
	}
}
