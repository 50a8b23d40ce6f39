package main

import (
	"fmt"
	"io"
	"os"

	"duet"
)

const defaultInitPath = "duet.yaml"

func runInit(args []string, out, errOut io.Writer) int {
	if len(args) > 1 {
		fmt.Fprintln(errOut, "usage: duet init [PATH]")
		return 1
	}
	path := defaultInitPath
	if len(args) == 1 && args[0] != "" {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(errOut, "%s already exists, not overwriting\n", path)
		return 1
	} else if !os.IsNotExist(err) {
		fmt.Fprintf(errOut, "stat %s: %v\n", path, err)
		return 1
	}

	if err := os.WriteFile(path, duet.StarterConfig, 0o644); err != nil {
		fmt.Fprintf(errOut, "write %s: %v\n", path, err)
		return 1
	}
	fmt.Fprintf(out, "wrote %s\n", path)
	fmt.Fprintf(out, "edit the personas, then start with: duet --config %s\n", path)
	return 0
}
