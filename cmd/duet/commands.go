package main

import (
	"fmt"
	"io"
	"os"

	"duet/internal/version"
)

type command interface {
	Run(args []string) int
}

type commandDeps struct {
	Stdin         io.Reader
	Stdout        io.Writer
	Stderr        io.Writer
	RunRun        func(args []string, in io.Reader, out, errOut io.Writer) int
	RunValidate   func(args []string, out, errOut io.Writer) int
	RunInit       func(args []string, out, errOut io.Writer) int
	RunCompletion func(args []string, out, errOut io.Writer) int
}

func defaultCommandDeps() commandDeps {
	return commandDeps{
		Stdin:         os.Stdin,
		Stdout:        os.Stdout,
		Stderr:        os.Stderr,
		RunRun:        runRun,
		RunValidate:   runValidate,
		RunInit:       runInit,
		RunCompletion: runCompletion,
	}
}

type runCommand struct {
	deps commandDeps
}

func (c runCommand) Run(args []string) int {
	return c.deps.RunRun(args, c.deps.Stdin, c.deps.Stdout, c.deps.Stderr)
}

type validateCommand struct {
	deps commandDeps
}

func (c validateCommand) Run(args []string) int {
	return c.deps.RunValidate(args, c.deps.Stdout, c.deps.Stderr)
}

type initCommand struct {
	deps commandDeps
}

func (c initCommand) Run(args []string) int {
	return c.deps.RunInit(args, c.deps.Stdout, c.deps.Stderr)
}

type completionCommand struct {
	deps commandDeps
}

func (c completionCommand) Run(args []string) int {
	return c.deps.RunCompletion(args, c.deps.Stdout, c.deps.Stderr)
}

type versionCommand struct {
	deps commandDeps
}

func (c versionCommand) Run(args []string) int {
	fmt.Fprintln(c.deps.Stdout, version.Get().Line("duet"))
	return 0
}

func resolveCommand(args []string, deps commandDeps) (command, []string) {
	if len(args) > 0 {
		switch args[0] {
		case "run":
			return runCommand{deps: deps}, args[1:]
		case "validate":
			return validateCommand{deps: deps}, args[1:]
		case "init":
			return initCommand{deps: deps}, args[1:]
		case "completion":
			return completionCommand{deps: deps}, args[1:]
		case "version":
			return versionCommand{deps: deps}, args[1:]
		}
	}
	return runCommand{deps: deps}, args
}
