package state

import "time"

const (
	DriverMemory   = "memory"
	DriverUpstash  = "upstash"
	DriverPostgres = "postgres"
)

// StoreConfig selects the session store backend (STATE_*).
type StoreConfig struct {
	Driver          string        `envconfig:"DRIVER" default:"memory" validate:"oneof=memory upstash postgres"`
	TTL             time.Duration `envconfig:"TTL" default:"24h"`
	CleanupInterval time.Duration `split_words:"true" default:"10m"`
	KeyPrefix       string        `split_words:"true" default:"salesbot:session:"`
}
