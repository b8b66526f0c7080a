// Command joinbench generates sorted tables, stores them as block files and
// runs every join kind over them.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "joinbench: %v\n", err)
		os.Exit(1)
	}
}
