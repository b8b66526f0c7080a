package main

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dd0wney/cluso-mergejoin/pkg/logging"
)

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	LogLevel   string
	ConfigPath string
	logger     logging.Logger
}

// NewRootCommand creates the joinbench command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "joinbench",
		Short: "Benchmark the merge-join engine over block files",
		Long: `joinbench generates sorted tables with UNDEF join values, stores them
as snappy-compressed block files and runs the join kinds over them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelFromEnv(logging.InfoLevel)
			if cmd.Flags().Changed("log-level") {
				var err error
				if level, err = logging.LookupLevel(opts.LogLevel); err != nil {
					return errors.Wrap(err, "--log-level")
				}
			}
			opts.logger = logging.NewJSONLogger(cmd.ErrOrStderr(), level).With(logging.Component("joinbench"))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error); defaults to $LOG_LEVEL, then info")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML benchmark configuration")

	cmd.AddCommand(newGenCommand(opts))
	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newInspectCommand(opts))

	return cmd
}

// tableFlags binds the table shape flags. Values given on the command line
// override the configuration file.
type tableFlags struct {
	cfg BenchConfig
}

func addTableFlags(fs *pflag.FlagSet) *tableFlags {
	tf := &tableFlags{cfg: DefaultBenchConfig()}
	fs.Int64Var(&tf.cfg.Seed, "seed", tf.cfg.Seed, "random seed")
	fs.IntVar(&tf.cfg.LeftRows, "left-rows", tf.cfg.LeftRows, "rows in the left table")
	fs.IntVar(&tf.cfg.RightRows, "right-rows", tf.cfg.RightRows, "rows in the right table")
	fs.IntVar(&tf.cfg.JoinColumns, "join-columns", tf.cfg.JoinColumns, "number of join columns")
	fs.IntVar(&tf.cfg.Payload, "payload", tf.cfg.Payload, "payload columns per row")
	fs.IntVar(&tf.cfg.KeyRange, "key-range", tf.cfg.KeyRange, "join values are drawn from [0, key-range)")
	fs.IntVar(&tf.cfg.UndefPercent, "undef", tf.cfg.UndefPercent, "percentage of UNDEF join values")
	fs.IntVar(&tf.cfg.BlockRows, "block-rows", tf.cfg.BlockRows, "rows per stored block")
	return tf
}

// resolve loads the configuration file and applies the flags that were set.
func (tf *tableFlags) resolve(fs *pflag.FlagSet, path string) (BenchConfig, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return cfg, err
	}
	set := map[string]func(){
		"seed":         func() { cfg.Seed = tf.cfg.Seed },
		"left-rows":    func() { cfg.LeftRows = tf.cfg.LeftRows },
		"right-rows":   func() { cfg.RightRows = tf.cfg.RightRows },
		"join-columns": func() { cfg.JoinColumns = tf.cfg.JoinColumns },
		"payload":      func() { cfg.Payload = tf.cfg.Payload },
		"key-range":    func() { cfg.KeyRange = tf.cfg.KeyRange },
		"undef":        func() { cfg.UndefPercent = tf.cfg.UndefPercent },
		"block-rows":   func() { cfg.BlockRows = tf.cfg.BlockRows },
		"kinds":        func() { cfg.Kinds = tf.cfg.Kinds },
		"workers":      func() { cfg.Workers = tf.cfg.Workers },
		"look-ahead":   func() { cfg.Query.LookAhead = tf.cfg.Query.LookAhead },
		"timeout":      func() { cfg.Query.Timeout = tf.cfg.Query.Timeout },
	}
	fs.Visit(func(f *pflag.Flag) {
		if apply, ok := set[f.Name]; ok {
			apply()
		}
	})
	return cfg, cfg.Validate()
}
