package query

import (
	"time"

	"github.com/dd0wney/cluso-mergejoin/pkg/join"
	"github.com/dd0wney/cluso-mergejoin/pkg/logging"
	"github.com/dd0wney/cluso-mergejoin/pkg/validation"
)

// Config controls how an Executor runs joins.
type Config struct {
	// LookAhead is the number of right-side blocks of one run buffered at once.
	LookAhead int `yaml:"look_ahead" validate:"min=1,max=1024"`
	// Timeout bounds each join. Zero selects DefaultJoinTimeout.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	// RecordMetrics enables Prometheus recording on the executor's registry.
	RecordMetrics bool `yaml:"record_metrics"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		LookAhead:     join.DefaultLookAhead,
		Timeout:       DefaultJoinTimeout,
		LogLevel:      "info",
		RecordMetrics: true,
	}
}

// Validate checks the struct tags and the timeout bound.
func (c Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}
	return validation.NewConfigValidator("query config").
		Custom("Timeout", func() error {
			if c.Timeout > MaxJoinTimeout {
				return errTimeoutAboveMax
			}
			return nil
		}).
		Validate()
}

func (c Config) logLevel() logging.Level {
	return logging.ParseLevel(c.LogLevel)
}
