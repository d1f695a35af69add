// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and dispatch for freeroute.
package cli

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/jeranaias/freeroute/internal/config"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdRun Command = iota
	CmdListFree
	CmdHistory
	CmdLatest
	CmdVersion
	CmdHelp
)

// String returns the command name used in JSON output.
func (c Command) String() string {
	switch c {
	case CmdListFree:
		return "list-free"
	case CmdHistory:
		return "history"
	case CmdLatest:
		return "latest"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "run"
	}
}

// Args holds parsed CLI arguments. Empty strings mean "not given" so
// config values survive.
type Args struct {
	// Completion flags
	Model       string
	Dir         string
	SystemFile  string
	UserFile    string
	Temperature *float64
	FreeOnly    bool

	// Output and config flags
	OutDir     string
	LogFile    string
	ConfigPath string
	JSON       bool
	Verbose    bool
	Raw        bool

	// Subcommand flags
	Limit int
	Print bool
}

// =============================================================================
// USAGE
// =============================================================================

const usageText = `freeroute - OpenRouter chat completions with a free-model fallback

Reads a system prompt and a user prompt from files, sends them to
OpenRouter, prints the reply and saves it under the output directory.
When the model answers 402 Payment Required, freeroute retries once with
the best free model from the live catalog.

Usage:
  freeroute [flags]              Run one completion
  freeroute --list-free          List free models, best first
  freeroute history [--limit N]  Show recent runs
  freeroute latest [--print]     Show the newest saved reply
  freeroute version              Show version information
  freeroute help                 Show this help

Flags:
  --model ID          Model to request (default: openrouter/auto)
  --dir DIR           Directory holding the prompt files (default: .)
  --system FILE       System prompt file (default: system_prompt.txt)
  --user FILE         User prompt file (default: user_prompt.txt)
  --temperature F     Sampling temperature, 0 to 2
  --free-only         Always use the best free model
  --list-free         List free models and exit
  --out DIR           Reply directory (default: generated_texts)
  --log-file PATH     Audit log (default: logs.txt)
  --config PATH       Config file (default: ./freeroute.toml, ~/.freeroute/config.toml)
  --json              Print machine-readable JSON
  --raw               Print the reply without Markdown rendering
  -v, --verbose       Debug logging on stderr

Environment:
  OPENROUTER_API_KEY     API key (required for completions)
  OPENROUTER_SITE_URL    Sent as HTTP-Referer
  OPENROUTER_APP_NAME    Sent as X-Title
  FREEROUTE_MODEL, FREEROUTE_BASE_URL, FREEROUTE_OUTPUT_DIR,
  FREEROUTE_LOG_FILE, FREEROUTE_LOG_LEVEL
  A .env file in the working directory is loaded first.

Exit codes:
  0  success
  1  missing prompt file, missing API key, no free model, bad usage
  2  HTTP error that the fallback did not recover
  3  anything else

Examples:
  freeroute --model anthropic/claude-3.5-sonnet
  freeroute --free-only --dir prompts/
  freeroute --list-free --json

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "freeroute version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go version: %s\n", runtime.Version())
}

// =============================================================================
// PARSING
// =============================================================================

var boolFlagNames = []string{"list-free", "free-only", "json", "verbose", "v", "raw", "print", "help", "h", "version"}

// valueFlags lists the value flags each command accepts.
var valueFlags = map[Command][]string{
	CmdRun:      {"model", "dir", "system", "user", "temperature", "out", "log-file", "config"},
	CmdListFree: {"config", "model", "dir", "system", "user", "temperature", "out", "log-file"},
	CmdHistory:  {"config", "limit"},
	CmdLatest:   {"config", "out"},
	CmdVersion:  {},
	CmdHelp:     {},
}

// Parse parses command-line arguments and returns the command and args.
func Parse(argv []string) (Command, Args, error) {
	p := NewArgParser(argv, boolFlagNames...)

	var cmd Command
	switch strings.ToLower(p.Subcommand()) {
	case "":
		cmd = CmdRun
		if p.BoolFlag("list-free") {
			cmd = CmdListFree
		}
	case "history":
		cmd = CmdHistory
	case "latest":
		cmd = CmdLatest
	case "version":
		cmd = CmdVersion
	case "help":
		cmd = CmdHelp
	default:
		return CmdHelp, Args{}, NewUsageError("unknown command %q", p.Subcommand())
	}
	if p.BoolFlag("help") || p.BoolFlag("h") {
		return CmdHelp, Args{}, nil
	}
	if p.BoolFlag("version") {
		cmd = CmdVersion
	}

	if p.PositionalCount() > 1 {
		return cmd, Args{}, NewUsageError("unexpected argument %q", p.Positional(1))
	}
	if unknown := p.Unknown(valueFlags[cmd]...); len(unknown) > 0 {
		return cmd, Args{}, NewUsageError("unknown flag --%s", unknown[0])
	}
	for _, name := range valueFlags[cmd] {
		if p.MissingValue(name) {
			return cmd, Args{}, NewUsageError("--%s requires a value", name)
		}
	}
	for _, name := range boolFlagNames {
		if v := p.Flag(name); v != "" {
			return cmd, Args{}, NewUsageError("invalid value %q for --%s", v, name)
		}
	}

	args := Args{
		Model:      strings.TrimSpace(p.Flag("model")),
		Dir:        p.Flag("dir"),
		SystemFile: p.Flag("system"),
		UserFile:   p.Flag("user"),
		FreeOnly:   p.BoolFlag("free-only"),
		OutDir:     p.Flag("out"),
		LogFile:    p.Flag("log-file"),
		ConfigPath: p.Flag("config"),
		JSON:       p.BoolFlag("json"),
		Verbose:    p.BoolFlag("verbose") || p.BoolFlag("v"),
		Raw:        p.BoolFlag("raw"),
		Print:      p.BoolFlag("print"),
	}

	if p.HasFlag("model") && (args.Model == "" || strings.ContainsAny(args.Model, " \t\n")) {
		return cmd, Args{}, NewUsageError("invalid model ID %q", p.Flag("model"))
	}

	temperature, set, err := p.FlagFloat("temperature")
	if err != nil {
		return cmd, Args{}, &UsageError{Reason: err.Error()}
	}
	if set {
		if temperature < 0 || temperature > 2 {
			return cmd, Args{}, NewUsageError("--temperature must be between 0 and 2, got %g", temperature)
		}
		args.Temperature = &temperature
	}

	if p.HasFlag("limit") {
		limit, err := ParseIntWithValidation(p.Flag("limit"), "--limit")
		if err != nil {
			return cmd, Args{}, &UsageError{Reason: err.Error()}
		}
		args.Limit = limit
	}

	return cmd, args, nil
}

// =============================================================================
// RUN
// =============================================================================

// app carries what every command handler needs.
type app struct {
	args    Args
	cfg     *config.Config
	cfgPath string
	logger  *log.Logger
	stdout  io.Writer
	stderr  io.Writer
}

// Run executes freeroute with argv (without the program name) and returns
// the process exit code.
func Run(argv []string, stdout, stderr io.Writer) int {
	cmd, args, err := Parse(argv)
	if err != nil {
		DisplayError(stderr, err)
		fmt.Fprintln(stderr, "Run 'freeroute help' for usage.")
		return ExitCodeFor(err)
	}

	switch cmd {
	case CmdHelp:
		PrintUsage(stdout)
		return ExitSuccess
	case CmdVersion:
		data, err := handleVersion(stdout, args.JSON)
		return finish(stdout, stderr, args.JSON, cmd, data, err)
	}

	a, err := newApp(args, stdout, stderr)
	if err != nil {
		return finish(stdout, stderr, args.JSON, cmd, nil, err)
	}

	ctx := context.Background()
	switch cmd {
	case CmdListFree:
		data, err := a.listFree(ctx)
		return finish(stdout, stderr, args.JSON, cmd, data, err)
	case CmdHistory:
		data, err := a.history(ctx)
		return finish(stdout, stderr, args.JSON, cmd, data, err)
	case CmdLatest:
		data, err := a.latest()
		return finish(stdout, stderr, args.JSON, cmd, data, err)
	default:
		data, err := a.complete(ctx)
		return finish(stdout, stderr, args.JSON, cmd, data, err)
	}
}

// finish prints the JSON envelope or the human-readable error and returns
// the exit code for err.
func finish(stdout, stderr io.Writer, jsonMode bool, cmd Command, data interface{}, err error) int {
	if jsonMode {
		var resp *JSONResponse
		if err != nil {
			resp = NewJSONErrorResponse(cmd.String(), err, data)
		} else {
			resp = NewJSONResponse(cmd.String(), data)
		}
		if perr := resp.Print(stdout); perr != nil {
			fmt.Fprintf(stderr, "failed to write JSON output: %v\n", perr)
		}
	} else if err != nil {
		DisplayError(stderr, err)
	}
	if err != nil {
		displayHints(stderr, err)
	}
	return ExitCodeFor(err)
}

// newApp loads .env and the config file, applies flag overrides and sets
// up the diagnostic logger.
func newApp(args Args, stdout, stderr io.Writer) (*app, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg, path, err := config.Load(args.ConfigPath)
	if err != nil {
		return nil, err
	}
	applyFlags(cfg, args)

	logger, err := newLogger(cfg.Logging.Level, stderr)
	if err != nil {
		return nil, err
	}
	logger.WithFields(log.Fields{
		"config":   path,
		"base_url": cfg.API.BaseURL,
		"model":    cfg.Model.Default,
	}).Debug("configuration loaded")

	return &app{
		args:    args,
		cfg:     cfg,
		cfgPath: path,
		logger:  logger,
		stdout:  stdout,
		stderr:  stderr,
	}, nil
}

// applyFlags copies command-line values over the loaded configuration.
func applyFlags(cfg *config.Config, args Args) {
	if args.Model != "" {
		cfg.Model.Default = args.Model
	}
	if args.FreeOnly {
		cfg.Model.FreeOnly = true
	}
	if args.Temperature != nil {
		t := *args.Temperature
		cfg.Model.Temperature = &t
	}
	if args.Dir != "" {
		cfg.Prompts.Dir = args.Dir
	}
	if args.SystemFile != "" {
		cfg.Prompts.System = args.SystemFile
	}
	if args.UserFile != "" {
		cfg.Prompts.User = args.UserFile
	}
	if args.OutDir != "" {
		cfg.Output.Dir = args.OutDir
	}
	if args.LogFile != "" {
		cfg.Output.AuditLog = args.LogFile
	}
	if args.Verbose {
		cfg.Logging.Level = log.DebugLevel.String()
	}
}

// newLogger builds the stderr logger for one invocation. The standard
// logger gets the same level so packages that log through it agree.
func newLogger(level string, w io.Writer) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger := log.New()
	logger.SetOutput(w)
	logger.SetLevel(lvl)
	logger.SetFormatter(&log.TextFormatter{
		DisableColors:    !ColorsEnabled(w),
		DisableTimestamp: true,
	})

	log.SetOutput(w)
	log.SetLevel(lvl)
	log.SetFormatter(logger.Formatter)
	return logger, nil
}

// =============================================================================
// SIMPLE COMMANDS
// =============================================================================

// handleVersion prints version information.
func handleVersion(w io.Writer, jsonMode bool) (interface{}, error) {
	if jsonMode {
		return VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}, nil
	}
	PrintVersion(w)
	return nil, nil
}
