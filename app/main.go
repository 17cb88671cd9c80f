// Package main is an entrypoint for application
package main

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	_ "time/tzdata"

	"github.com/Semior001/morningdigest/app/cmd"
	"github.com/Semior001/morningdigest/pkg/logx"
	"github.com/jessevdk/go-flags"
	"golang.org/x/exp/slog"
)

var opts struct {
	Run      cmd.Run `command:"run" description:"run daily digest bot"`
	JSONLogs bool    `long:"json-logs" env:"JSON_LOGS" description:"turn on json logs"`
	Debug    bool    `long:"dbg" env:"DEBUG" description:"turn on debug mode"`
}

var version = "unknown"

func getVersion() string {
	v, ok := debug.ReadBuildInfo()
	if !ok || v.Main.Version == "(devel)" {
		return version
	}
	return v.Main.Version
}

func main() {
	fmt.Printf("morning digest, version: %s\n", getVersion())

	p := flags.NewParser(&opts, flags.Default)
	p.CommandHandler = func(cmd flags.Commander, args []string) error {
		setupLog()

		if err := cmd.Execute(args); err != nil {
			slog.Error("failed to execute command", slog.Any("err", err))
			os.Exit(1)
		}

		return nil
	}

	if _, err := p.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		slog.Error("failed to parse flags", slog.Any("err", err))
		os.Exit(1)
	}
}

func setupLog() {
	lvl := slog.LevelInfo
	if opts.Debug {
		lvl = slog.LevelDebug
	}

	hopts := slog.HandlerOptions{Level: lvl, AddSource: opts.Debug}

	var h slog.Handler = hopts.NewTextHandler(os.Stderr)
	if opts.JSONLogs {
		h = hopts.NewJSONHandler(os.Stderr)
	}

	// request ids are put into the context by bot middlewares and
	// by scheduled jobs, the chain lifts them into every record
	slog.SetDefault(slog.New(&logx.Chain{
		Middleware: []logx.Middleware{logx.RequestID},
		Handler:    h,
	}))
}
