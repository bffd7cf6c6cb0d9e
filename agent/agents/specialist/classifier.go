package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/asic-salesbot/agent/contract"
	statex "github.com/tanpawarit/asic-salesbot/agent/state"
)

var (
	fencePattern  = regexp.MustCompile("(?s)```(?:json)?(.*?)```")
	nonDigitPhone = regexp.MustCompile(`[^\d]`)
	digitRun      = regexp.MustCompile(`\d+`)
)

// entityRules are validator tags for entity values. Values that fail are
// dropped, never repaired.
var entityRules = map[statex.EntityKey]string{
	statex.EntityPhone:         "phone",
	statex.EntityTelegram:      "telegram",
	statex.EntityEmail:         "email",
	statex.EntityObjectionType: "oneof=price noise roi warranty power heat other",
	statex.EntitySelection:     "selection",
	statex.EntityName:          "max=80",
	statex.EntityBrand:         "max=60",
	statex.EntityModel:         "max=80",
	statex.EntitySeries:        "max=60",
	statex.EntityBudget:        "max=60",
	statex.EntityCondition:     "max=40",
	statex.EntityHashRate:      "max=40",
	statex.EntityPreferredTime: "max=60",
}

var (
	phoneDigits     = regexp.MustCompile(`^\+?\d{7,15}$`)
	telegramHandle  = regexp.MustCompile(`^(@[A-Za-z0-9_]{4,32}|(https?://)?t\.me/[A-Za-z0-9_]{4,32})$`)
	selectionFormat = regexp.MustCompile(`^\d+(\s*,\s*\d+)*$`)
)

func newEntityValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneDigits.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("telegram", func(fl validator.FieldLevel) bool {
		return telegramHandle.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("selection", func(fl validator.FieldLevel) bool {
		return selectionFormat.MatchString(fl.Field().String())
	})
	return v
}

type classifierImpl struct {
	runner   compose.Runnable[map[string]any, string]
	validate *validator.Validate
}

func newClassifier(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*classifierImpl, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: classifier", contractx.ErrPromptMissing)
	}
	runner, err := compileTextGraph(ctx, chatModel, systemPrompt, "classifier.model_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile classifier graph: %v", contractx.ErrModelInvoke, err)
	}
	return &classifierImpl{runner: runner, validate: newEntityValidator()}, nil
}

func (c *classifierImpl) Classify(ctx context.Context, req contractx.ClassifyRequest) (contractx.Classification, error) {
	if strings.TrimSpace(req.UserMessage) == "" {
		return contractx.Classification{}, fmt.Errorf("%w: user message is required", contractx.ErrValidation)
	}

	recent := make([]map[string]string, 0, len(req.Recent))
	for _, t := range req.Recent {
		recent = append(recent, map[string]string{"role": string(t.Role), "text": t.Text})
	}
	payload := map[string]any{
		"user_message":   req.UserMessage,
		"recent_turns":   recent,
		"known_entities": req.Known,
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return contractx.Classification{}, fmt.Errorf("%w: marshal classifier payload: %v", contractx.ErrValidation, err)
	}

	raw, err := c.runner.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return contractx.Classification{}, fmt.Errorf("%w: classifier invoke: %v", contractx.ErrModelInvoke, err)
	}

	out := c.parse(raw)
	log.Ctx(ctx).Debug().
		Str("intent", string(out.Intent)).
		Int("entities", len(out.Entities)).
		Msg("message classified")
	return out, nil
}

type classifierLLMOutput struct {
	Intent   *string         `json:"intent"`
	Entities *map[string]any `json:"entities"`
}

// parse never fails: anything malformed becomes {other, {}}.
func (c *classifierImpl) parse(raw string) contractx.Classification {
	fallback := contractx.Classification{Intent: contractx.IntentOther, Entities: statex.Entities{}}

	body, ok := extractJSONObject(raw)
	if !ok {
		return fallback
	}
	var out classifierLLMOutput
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return fallback
	}
	if out.Intent == nil || out.Entities == nil {
		return fallback
	}
	intent, known := contractx.ParseIntent(*out.Intent)
	if !known {
		return fallback
	}

	entities := statex.Entities{}
	for key, value := range *out.Entities {
		ek := statex.EntityKey(strings.ToLower(strings.TrimSpace(key)))
		if !intent.Allows(ek) {
			continue
		}
		v := normalizeEntity(ek, stringifyEntity(value))
		if v == "" {
			continue
		}
		if rule, ok := entityRules[ek]; ok {
			if err := c.validate.Var(v, rule); err != nil {
				continue
			}
		}
		entities[ek] = v
	}
	return contractx.Classification{Intent: intent, Entities: entities}
}

func extractJSONObject(raw string) (string, bool) {
	text := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func stringifyEntity(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := stringifyEntity(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ",")
	case map[string]any:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func normalizeEntity(key statex.EntityKey, v string) string {
	switch key {
	case statex.EntityPhone:
		plus := strings.HasPrefix(v, "+")
		digits := nonDigitPhone.ReplaceAllString(v, "")
		if digits == "" {
			return ""
		}
		if plus {
			return "+" + digits
		}
		return digits
	case statex.EntityObjectionType:
		return strings.ToLower(v)
	case statex.EntityEmail:
		return strings.ToLower(v)
	case statex.EntitySelection:
		return strings.Join(digitRun.FindAllString(v, -1), ",")
	default:
		return v
	}
}
