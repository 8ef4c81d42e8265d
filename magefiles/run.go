//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Validates the shaders and runs the engine with the default configuration.
func (Run) Engine() error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run engine...")
	return goCmd([]string{"run", "."}, withStream())
}

// Runs the engine on the headless backend for a handful of frames.
func (Run) Headless() error {
	fmt.Println("Run engine headless...")
	return goCmd([]string{"run", ".", "-config", "assets/config/headless.toml"}, withStream())
}

type Test mg.Namespace

// Runs every package test.
func (Test) All() error {
	// the race detector needs cgo
	return goCmd([]string{"test", "-race", "./..."}, withEnv(map[string]string{"CGO_ENABLED": "1"}), withStream())
}
