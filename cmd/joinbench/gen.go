package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-mergejoin/pkg/logging"
)

func newGenCommand(root *rootOptions) *cobra.Command {
	var dir string
	var tf *tableFlags

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate the benchmark tables as block files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := tf.resolve(cmd.Flags(), root.ConfigPath)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return errors.Wrap(err, "creating output directory")
			}

			timer := logging.StartTimer(root.logger, "tables generated", logging.Path(dir))
			set, rows, err := writeTables(cfg, dir, nil)
			if err != nil {
				return err
			}
			timer.End(logging.Rows(rows))

			out := cmd.OutOrStdout()
			for _, role := range roles {
				if pair, ok := set[role]; ok {
					fmt.Fprintf(out, "%-8s left:  %s\n", role, pair.Left)
					fmt.Fprintf(out, "%-8s right: %s\n", role, pair.Right)
				}
			}
			fmt.Fprintf(out, "%d rows written\n", rows)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "output directory")
	tf = addTableFlags(cmd.Flags())
	return cmd
}
