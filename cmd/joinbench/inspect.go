package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-mergejoin/pkg/blockstore"
	"github.com/dd0wney/cluso-mergejoin/pkg/join"
)

func newInspectCommand(root *rootOptions) *cobra.Command {
	var maxBlocks int

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the header and leading blocks of a block file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := blockstore.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()
			return inspect(cmd.OutOrStdout(), r, maxBlocks)
		},
	}

	cmd.Flags().IntVarP(&maxBlocks, "blocks", "n", 3, "number of blocks to print (negative prints all)")
	return cmd
}

func inspect(w io.Writer, r *blockstore.Reader, maxBlocks int) error {
	fmt.Fprintf(w, "file: %s\n", filepath.Base(r.Path()))
	fmt.Fprintf(w, "width: %d\n", r.Width())
	fmt.Fprintf(w, "join columns: %d\n", r.JoinColumns())
	fmt.Fprintf(w, "rows: %d\n", r.NumRows())
	fmt.Fprintf(w, "blocks: %d\n", r.NumBlocks())

	n := r.NumBlocks()
	if maxBlocks >= 0 && maxBlocks < n {
		n = maxBlocks
	}
	for i := 0; i < n; i++ {
		blk, err := r.ReadBlock(i)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "block %d (%d rows)\n", i, len(blk))
		for _, row := range blk {
			fmt.Fprintf(w, "  %s\n", formatRow(row, r.JoinColumns()))
		}
	}
	if n < r.NumBlocks() {
		fmt.Fprintf(w, "... %d more blocks\n", r.NumBlocks()-n)
	}
	return nil
}

// formatRow prints the key of a row followed by its payload.
func formatRow(row join.Row, joinColumns int) string {
	var sb strings.Builder
	sb.WriteString(row.Key(joinColumns).String())
	for _, v := range row[joinColumns:] {
		sb.WriteByte(' ')
		sb.WriteString(v.String())
	}
	return sb.String()
}
