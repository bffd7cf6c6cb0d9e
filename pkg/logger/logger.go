package logx

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Debug        bool `split_words:"true" default:"false"`
	PrettyFormat bool `split_words:"true" default:"false"`

	// File enables a rotated JSON log file next to the stdout stream.
	File          string `split_words:"true"`
	MaxSizeMB     int    `envconfig:"MAX_SIZE_MB" default:"10" validate:"gte=0"`
	MaxBackups    int    `split_words:"true" default:"5" validate:"gte=0"`
	MaxAgeDays    int    `split_words:"true" default:"30" validate:"gte=0"`
	CompressFiles bool   `split_words:"true" default:"true"`
}

var DefaultConfig = &Config{
	Debug:        false,
	PrettyFormat: false,
}

func safe(opts ...Config) *Config {
	if len(opts) == 0 {
		return DefaultConfig
	}
	return &opts[0]
}

func Init(opts ...Config) {
	conf := safe(opts...)

	var console io.Writer = os.Stdout
	if conf.PrettyFormat {
		console = zerolog.NewConsoleWriter()
	}

	out := console
	if path := strings.TrimSpace(conf.File); path != "" {
		out = zerolog.MultiLevelWriter(console, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    conf.MaxSizeMB,
			MaxBackups: conf.MaxBackups,
			MaxAge:     conf.MaxAgeDays,
			Compress:   conf.CompressFiles,
		})
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	if conf.Debug {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	log.Logger = log.Logger.With().Caller().Stack().Logger()
	zerolog.DefaultContextLogger = &log.Logger
}
