//go:build mage

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

type cmdOptions struct {
	env    map[string]string
	stream bool
}

type cmdOption func(*cmdOptions)

// withEnv adds variables to the environment of the command.
func withEnv(env map[string]string) cmdOption {
	return func(o *cmdOptions) {
		o.env = env
	}
}

func withStream() cmdOption {
	return func(o *cmdOptions) {
		o.stream = true
	}
}

// goCmd runs the go tool. Output is only shown on failure unless streamed
// or mage runs verbose.
func goCmd(args []string, options ...cmdOption) error {
	opts := &cmdOptions{}
	for _, o := range options {
		o(opts)
	}

	fmt.Printf("Executing: go %s\n", strings.Join(args, " "))

	var b bytes.Buffer
	var stdout, stderr io.Writer = &b, &b
	streamOutput := mg.Verbose() || opts.stream
	if streamOutput {
		stdout = io.MultiWriter(&b, os.Stdout)
		stderr = io.MultiWriter(&b, os.Stderr)
	}
	if _, err := sh.Exec(opts.env, stdout, stderr, mg.GoCmd(), args...); err != nil {
		if !streamOutput {
			fmt.Println("... failed command output:")
			fmt.Println(b.String())
		}
		return fmt.Errorf("go %s: %w", args[0], err)
	}
	return nil
}
