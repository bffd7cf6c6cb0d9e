package contract

import (
	"testing"

	statex "github.com/tanpawarit/asic-salesbot/agent/state"
)

func TestParseIntent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want Intent
		ok   bool
	}{
		{raw: "catalog_query", want: IntentCatalogQuery, ok: true},
		{raw: " Schedule_Call ", want: IntentScheduleCall, ok: true},
		{raw: "greeting", want: IntentGreeting, ok: true},
		{raw: "buy_now", want: IntentOther, ok: false},
		{raw: "", want: IntentOther, ok: false},
	}

	for _, tc := range cases {
		got, ok := ParseIntent(tc.raw)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseIntent(%q) = (%s, %v), want (%s, %v)", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestIntentAllowedEntities(t *testing.T) {
	t.Parallel()

	if !IntentScheduleCall.Allows(statex.EntityPhone) {
		t.Fatal("schedule_call must allow phone")
	}
	if IntentCatalogQuery.Allows(statex.EntityPhone) {
		t.Fatal("catalog_query must not allow phone")
	}
	if len(IntentPresentation.AllowedEntities()) != 0 {
		t.Fatalf("presentation allows %v", IntentPresentation.AllowedEntities())
	}
	if !IntentObjection.Allows(statex.EntityObjectionType) {
		t.Fatal("objection must allow objection_type")
	}
}

func TestIntentAgentType(t *testing.T) {
	t.Parallel()

	if IntentCatalogQuery.AgentType() != AgentTypeCatalog {
		t.Fatalf("catalog_query routed to %q", IntentCatalogQuery.AgentType())
	}
	if IntentGreeting.AgentType() != "" || IntentOther.AgentType() != "" {
		t.Fatal("greeting and other are answered directly")
	}
}
