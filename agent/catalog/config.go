package catalog

import "time"

const (
	DriverRedis = "redis"
	DriverFile  = "file"
)

// Config is loaded from CATALOG_* variables. Column names follow the header
// row of the product sheet that the sync job mirrors into Redis.
type Config struct {
	Driver     string        `envconfig:"DRIVER" default:"redis" validate:"oneof=redis file"`
	RedisURL   string        `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	KeyPrefix  string        `split_words:"true" default:"asic"`
	StaleAfter time.Duration `split_words:"true" default:"30m"`
	File       string        `envconfig:"FILE" validate:"required_if=Driver file"`

	BrandColumn     string `split_words:"true" default:"Производитель"`
	SeriesColumn    string `split_words:"true" default:"Линейка"`
	ConditionColumn string `split_words:"true" default:"Состояние"`
	PriceColumn     string `split_words:"true" default:"Цена"`
	HashRateColumn  string `split_words:"true" default:"Хэшрейт"`
	PowerColumn     string `split_words:"true" default:"Потребление"`

	GroupThreshold int  `split_words:"true" default:"7" validate:"gte=1"`
	Phrase         bool `envconfig:"PHRASE" default:"false"`
}

func (c Config) Schema() Schema {
	s := Schema{
		Brand:     c.BrandColumn,
		Series:    c.SeriesColumn,
		Condition: c.ConditionColumn,
		Price:     c.PriceColumn,
		HashRate:  c.HashRateColumn,
		Power:     c.PowerColumn,
	}
	return s.withDefaults()
}
