package main

import (
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-mergejoin/pkg/blockstore"
	"github.com/dd0wney/cluso-mergejoin/pkg/join"
	"github.com/dd0wney/cluso-mergejoin/pkg/query"
	"github.com/dd0wney/cluso-mergejoin/pkg/validation"
)

// BenchConfig describes the generated tables and the joins run over them.
type BenchConfig struct {
	Seed         int64        `yaml:"seed"`
	LeftRows     int          `yaml:"left_rows"`
	RightRows    int          `yaml:"right_rows"`
	JoinColumns  int          `yaml:"join_columns"`
	Payload      int          `yaml:"payload"`
	KeyRange     int          `yaml:"key_range"`
	UndefPercent int          `yaml:"undef_percent"`
	BlockRows    int          `yaml:"block_rows"`
	Kinds        []string     `yaml:"kinds"`
	Workers      int          `yaml:"workers"`
	Query        query.Config `yaml:"query"`
}

// DefaultBenchConfig returns the configuration used without a file or flags.
func DefaultBenchConfig() BenchConfig {
	return BenchConfig{
		Seed:         1,
		LeftRows:     100_000,
		RightRows:    100_000,
		JoinColumns:  2,
		Payload:      1,
		KeyRange:     1_000,
		UndefPercent: 5,
		BlockRows:    blockstore.DefaultBlockRows,
		Kinds:        query.KindNames(),
		Workers:      1,
		Query:        query.DefaultConfig(),
	}
}

// loadConfig reads a YAML file over the defaults. Keys missing from the file
// keep their default values.
func loadConfig(path string) (BenchConfig, error) {
	cfg := DefaultBenchConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "reading config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}

// Width returns the width of a generated row.
func (c BenchConfig) Width() int {
	return c.JoinColumns + c.Payload
}

// Validate reports every problem with the configuration at once.
func (c BenchConfig) Validate() error {
	v := validation.NewConfigValidator("joinbench")
	v.RangeInt("LeftRows", c.LeftRows, 0, 100_000_000).
		RangeInt("RightRows", c.RightRows, 0, 100_000_000).
		RangeInt("JoinColumns", c.JoinColumns, 1, join.MaxJoinColumns).
		RangeInt("Payload", c.Payload, 0, validation.MaxRowWidth-join.MaxJoinColumns).
		Positive("KeyRange", c.KeyRange).
		Percent("UndefPercent", c.UndefPercent).
		RangeInt("Workers", c.Workers, 1, 256).
		EachOneOf("Kinds", c.Kinds, query.KindNames()).
		Custom("BlockRows", func() error {
			return validation.ValidateBlockRows(c.BlockRows)
		}).
		Custom("Query", c.Query.Validate)

	if len(c.Kinds) == 0 {
		v.Custom("Kinds", func() error { return errors.New("at least one join kind is required") })
	}
	for _, k := range c.Kinds {
		if k == string(query.KindSpecialOptional) && c.JoinColumns < 2 {
			v.Custom("JoinColumns", func() error {
				return errors.Newf("%s needs at least 2 join columns, got %d", k, c.JoinColumns)
			})
		}
	}
	return v.Validate()
}
