// Package autoload configures the global logger from LOG_* env vars on import.
package autoload

import (
	"github.com/rs/zerolog/log"

	configx "github.com/tanpawarit/asic-salesbot/pkg/config"
	logx "github.com/tanpawarit/asic-salesbot/pkg/logger"
)

func init() {
	conf, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		log.Warn().Err(err).Msg("logger config invalid, falling back to defaults")
		return
	}
	logx.Init(*conf)
}
