package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&snapshotCmd{}, "")
	subcommands.Register(&watchCmd{}, "")
	subcommands.Register(&pingCmd{}, "")
	subcommands.Register(&lastCmd{}, "")

	configPath := flag.String("config", "", "path to config.yaml (default: ../config/config.yaml next to the binary)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	status := subcommands.Execute(ctx, *configPath)
	stop()
	os.Exit(int(status))
}
