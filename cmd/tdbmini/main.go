// Package main is the entry point for the tdbmini command.
//
// tdbmini inspects and edits the collections of a tdbmini database from the
// shell. Configuration is resolved like the library does: built-in defaults,
// then tdb-mini.config.json in the working directory, then the -base-dir and
// -pretty flags when they are set explicitly.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/maruel/tdbmini/config"
	"github.com/maruel/tdbmini/jsondb"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "tdbmini: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	baseDir := flag.String("base-dir", config.DefaultBaseDir, "Directory holding the collections; overrides "+config.FileName)
	pretty := flag.Bool("pretty", false, "Write collections with 2-space indentation; overrides "+config.FileName)
	flag.Usage = usage
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			val := a.Value.Any()
			skip := false
			switch t := val.(type) {
			case string:
				skip = t == ""
			case bool:
				skip = !t
			case int64:
				skip = t == 0
			case time.Duration:
				skip = t == 0
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	switch *logLevel {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", *logLevel)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return errors.New("missing command")
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "version":
		printVersion()
		return nil
	case "schema":
		return cmdSchema(os.Stdout, rest)
	}

	// Only flags set on the command line take precedence over the file.
	var overrides []config.Overrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "base-dir":
			overrides = append(overrides, config.WithBaseDir(*baseDir))
		case "pretty":
			overrides = append(overrides, config.WithPrettyJSON(*pretty))
		}
	})
	db, err := jsondb.Open(overrides...)
	if err != nil {
		return err
	}
	slog.Debug("Using database", "dir", db.Dir(), "pretty", db.Config().PrettyJSON)

	switch cmd {
	case "get":
		return cmdGet(os.Stdout, db, rest)
	case "add":
		return cmdAdd(os.Stdout, db, rest)
	case "del":
		return cmdDel(os.Stdout, db, rest)
	case "update":
		return cmdUpdate(os.Stdout, db, rest)
	case "list":
		return cmdList(os.Stdout, db, rest)
	case "drop":
		return cmdDrop(db, rest)
	case "watch":
		return cmdWatch(ctx, os.Stdout, db, rest)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "usage: tdbmini [flags] <command> [args]\n\n")
	fmt.Fprintf(out, "Commands:\n")
	fmt.Fprintf(out, "  get [-where k=v]... [-format json|yaml] <collection>\n")
	fmt.Fprintf(out, "  add [-id] <collection> <json-object>...\n")
	fmt.Fprintf(out, "  del [-where k=v]... [-all] <collection>\n")
	fmt.Fprintf(out, "  update [-where k=v]... [-all] <collection> <json-patch>\n")
	fmt.Fprintf(out, "  list\n")
	fmt.Fprintf(out, "  drop <collection>\n")
	fmt.Fprintf(out, "  watch <collection>\n")
	fmt.Fprintf(out, "  schema\n")
	fmt.Fprintf(out, "  version\n\n")
	fmt.Fprintf(out, "Flags:\n")
	flag.PrintDefaults()
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("tdbmini %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}
