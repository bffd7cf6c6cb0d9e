package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	contractx "github.com/tanpawarit/asic-salesbot/agent/contract"
	openrouterx "github.com/tanpawarit/asic-salesbot/pkg/openrouter"
)

const (
	DriverEino = "eino"
	DriverSDK  = "openai-sdk"
)

type Config struct {
	Driver             string        `envconfig:"DRIVER" default:"eino" validate:"oneof=eino openai-sdk"`
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	RetryAttempts  uint64        `split_words:"true" default:"3"`
	RetryBaseDelay time.Duration `split_words:"true" default:"500ms"`

	OrchestratorModel       string  `envconfig:"ORCHESTRATOR_MODEL" split_words:"true"`
	ClassifierModel         string  `envconfig:"CLASSIFIER_MODEL" split_words:"true"`
	CatalogModel            string  `envconfig:"CATALOG_MODEL" split_words:"true"`
	ResponderModel          string  `envconfig:"RESPONDER_MODEL" split_words:"true"`
	OrchestratorTemperature float32 `envconfig:"ORCHESTRATOR_TEMPERATURE" split_words:"true" default:"-1"`
	ClassifierTemperature   float32 `envconfig:"CLASSIFIER_TEMPERATURE" split_words:"true" default:"0"`
	CatalogTemperature      float32 `envconfig:"CATALOG_TEMPERATURE" split_words:"true" default:"-1"`
	ResponderTemperature    float32 `envconfig:"RESPONDER_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	switch c.driver() {
	case DriverEino, DriverSDK:
	default:
		return fmt.Errorf("%w: unsupported llm driver=%q", contractx.ErrValidation, c.Driver)
	}
	return nil
}

func (c Config) driver() string {
	d := strings.TrimSpace(c.Driver)
	if d == "" {
		return DriverEino
	}
	return d
}

func (c Config) OpenRouterFor(agentType contractx.AgentType) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	override := func(m string, t float32) {
		if v := strings.TrimSpace(m); v != "" {
			modelName = v
		}
		if t >= 0 {
			temp = t
		}
	}

	switch agentType {
	case contractx.AgentTypeOrchestrator:
		override(c.OrchestratorModel, c.OrchestratorTemperature)
	case contractx.AgentTypeClassifier:
		override(c.ClassifierModel, c.ClassifierTemperature)
	case contractx.AgentTypeCatalog:
		override(c.CatalogModel, c.CatalogTemperature)
	case contractx.AgentTypeObjection, contractx.AgentTypePresentation, contractx.AgentTypeScheduleCall:
		override(c.ResponderModel, c.ResponderTemperature)
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}

// ChatModelFor builds the configured driver for agentType and wraps it with
// bounded retries.
func (c Config) ChatModelFor(ctx context.Context, agentType contractx.AgentType) (einomodel.BaseChatModel, error) {
	orCfg := c.OpenRouterFor(agentType)

	var (
		base einomodel.BaseChatModel
		err  error
	)
	switch c.driver() {
	case DriverSDK:
		base, err = orCfg.NewSDKModel()
	default:
		base, err = orCfg.New(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: create %s model: %v", contractx.ErrModelInvoke, agentType, err)
	}

	return WithRetry(base, string(agentType), c.RetryAttempts, c.RetryBaseDelay), nil
}
