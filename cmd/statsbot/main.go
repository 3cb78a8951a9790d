package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/bigbes/chatstats/cmd/statsbot/commands"
)

var version = "dev"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		commands.Run(os.Args[2:], logger, version)
	case "init":
		commands.Init(os.Args[2:], logger)
	case "report":
		commands.Report(os.Args[2:], logger)
	case "backup":
		commands.Backup(os.Args[2:], logger)
	case "restore":
		commands.Restore(os.Args[2:], logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: statsbot <command> [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  run       Start the Telegram stats bot")
	fmt.Fprintln(os.Stderr, "  init      Write a starter config file")
	fmt.Fprintln(os.Stderr, "  report    Print a group's stats from the database")
	fmt.Fprintln(os.Stderr, "  backup    Dump all stats to a (optionally encrypted) file")
	fmt.Fprintln(os.Stderr, "  restore   Load a dump into the database")
}
