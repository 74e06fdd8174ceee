package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"

	"symdir/config"
	"symdir/logger"
)

var configPath = flag.String("config", config.DefaultConfigPath, "Path to configuration file")

func main() {
	_ = godotenv.Load()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range commands {
		commander.Register(c, "")
	}

	flag.Parse()

	// keep stdout for command output
	log := logger.GetLogger()
	log.SetOutput(os.Stderr)

	os.Exit(int(commander.Execute(context.Background())))
}
