package main

import (
	"fmt"
	"io"

	"duet/internal/persona"
)

func runValidate(args []string, out, errOut io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(errOut, "usage: duet validate FILE")
		return 1
	}
	path := args[0]

	overlay, err := persona.ParseFile(path)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	cfg := persona.Default()
	cfg = cfg.Merge(overlay)
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(errOut, "%s: %v\n", path, err)
		return 1
	}

	fmt.Fprintf(out, "%s is valid\n", path)
	fmt.Fprintf(out, "  session:  %s\n", cfg.Session)
	fmt.Fprintf(out, "  host:     %s\n", cfg.Host)
	fmt.Fprintf(out, "  scenario: %s\n", cfg.Scenario)
	for _, p := range cfg.Personas {
		role := "responds"
		if p.Opener {
			role = "opens"
		}
		fmt.Fprintf(out, "  persona:  %s (%s, model %s, %s)\n", p.Name, p.DisplayLabel(), p.Model, role)
	}
	return 0
}
