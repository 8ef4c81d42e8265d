/*
Aurora renders the scene named in the engine configuration until the window
is closed, Escape is pressed or the process is interrupted.
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/aurora/engine"
	"github.com/spaghettifunk/aurora/engine/core"
)

func main() {
	configPath := flag.String("config", core.DefaultConfigPath, "path to the engine configuration")
	flag.Parse()

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		core.LogFatal("%v", err)
	}

	// capture sigterm and other system calls here
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		core.LogFatal("%v", err)
	}
}

func run(ctx context.Context, cfg *core.EngineConfig) (err error) {
	e := engine.New(cfg, engine.Options{})
	if err := e.Initialize(); err != nil {
		return err
	}
	defer func() {
		if shutdownErr := e.Shutdown(); err == nil {
			err = shutdownErr
		}
	}()
	return e.Run(ctx)
}
