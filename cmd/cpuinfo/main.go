package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/slashdevops/cpuinfo"
	"github.com/slashdevops/cpuinfo/internal/version"
)

const applicationName = "cpuinfo"

// addConfigEnv lists extra schema files, separated like PATH.
const addConfigEnv = "CPUINFO_ADD_CONFIG"

// Exit codes. exitDifferent is only returned by diff.
const (
	exitOK        = 0
	exitDifferent = 1
	exitError     = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], systemEnv())
	stop()
	os.Exit(code)
}

// env is everything a command touches outside its arguments. Tests replace
// the register sources with in-memory ones.
type env struct {
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string

	hostCPUID func() (cpuinfo.RegisterSource, error)
	hostMSR   func(cpu int) (cpuinfo.MSRSource, io.Closer, error)
	kvmCPUID  func() (cpuinfo.RegisterSource, error)
	kvmMSR    func() (cpuinfo.MSRSource, error)
	pin       func(cpu int) (func(), error)
}

func systemEnv() *env {
	return &env{
		stdout: os.Stdout,
		stderr: os.Stderr,
		getenv: os.Getenv,
		hostCPUID: func() (cpuinfo.RegisterSource, error) {
			return cpuinfo.NewHostSource()
		},
		hostMSR: func(cpu int) (cpuinfo.MSRSource, io.Closer, error) {
			m, err := cpuinfo.OpenLinuxMSR(cpu)
			if err != nil {
				return nil, nil, err
			}
			return m, m, nil
		},
		kvmCPUID: func() (cpuinfo.RegisterSource, error) {
			return cpuinfo.NewKVMSource()
		},
		kvmMSR: func() (cpuinfo.MSRSource, error) {
			return cpuinfo.NewKVMMSR()
		},
		pin: cpuinfo.PinToCPU,
	}
}

// run executes one command line and returns the process exit code.
func run(ctx context.Context, args []string, e *env) int {
	err := dispatch(ctx, args, e)
	switch {
	case err == nil, errors.Is(err, pflag.ErrHelp):
		return exitOK
	case errors.Is(err, cpuinfo.ErrDifferencesFound):
		return exitDifferent
	default:
		fmt.Fprintf(e.stderr, "%s: %v\n", applicationName, err)
		return exitError
	}
}

func dispatch(ctx context.Context, args []string, e *env) error {
	if len(args) == 0 {
		printUsage(e.stderr)
		return errors.New("no command given")
	}

	switch args[0] {
	case "disp":
		return runDisp(args[1:], e)
	case "facts":
		return runFacts(ctx, args[1:], e)
	case "diff":
		return runDiff(args[1:], e)
	case "version":
		return runVersion(args[1:], e)
	case "--version":
		printVersion(e.stdout, false)
		return nil
	case "-h", "--help", "help":
		printUsage(e.stdout)
		return nil
	default:
		printUsage(e.stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `%[1]s - decode CPUID leaves and model-specific registers into facts

Usage:
  %[1]s <command> [flags]

Commands:
  disp      Display decoded leaves and MSRs of the running CPU
  facts     Collect facts as YAML, JSON or CBOR
  diff      Compare two fact snapshots; exits 1 when they differ
  version   Show version information

Common flags:
  --add-config FILE   Merge an additional schema file (repeatable)
  -v, --verbose       Log at debug level

Schema files listed in $%[2]s are merged before --add-config files.

Examples:
  %[1]s disp --cpu 2
  %[1]s disp --raw
  %[1]s facts --output host.json.zst
  %[1]s facts --fingerprint --salt my-app
  %[1]s diff before.yaml after.cbor --format text
`, applicationName, addConfigEnv)
}

// commonFlags are accepted by every command that reads the schema.
type commonFlags struct {
	addConfig []string
	verbose   bool
}

func (c *commonFlags) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringArrayVar(&c.addConfig, "add-config", nil, "merge an additional schema file (repeatable)")
	flagSet.BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level")
}

// logger builds the command logger: text on a terminal, JSON otherwise.
func (c *commonFlags) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}

	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}

// definition loads the embedded schema merged with the environment and
// --add-config files, logging lint warnings.
func (c *commonFlags) definition(e *env, logger *slog.Logger) (*cpuinfo.Definition, error) {
	var paths []string
	for _, p := range filepath.SplitList(e.getenv(addConfigEnv)) {
		if p != "" {
			paths = append(paths, p)
		}
	}
	paths = append(paths, c.addConfig...)

	def, err := cpuinfo.LoadDefinitionFiles(cpuinfo.DefaultDefinition(), paths...)
	if err != nil {
		return nil, err
	}
	for _, w := range def.Lint() {
		logger.Warn("schema", "warning", w)
	}
	logger.Debug("schema loaded", "files", paths, "leaves", len(def.CPUIDs), "msrs", len(def.MSRs))

	return def, nil
}

func newFlagSet(name string, e *env) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.SetOutput(e.stderr)
	return flagSet
}

// pinCPU keeps the current goroutine on cpu. Failure is logged and the
// command continues unpinned.
func pinCPU(e *env, cpu int, logger *slog.Logger) func() {
	restore, err := e.pin(cpu)
	if err != nil {
		logger.Warn("unable to pin to cpu", "cpu", cpu, "error", err)
		return func() {}
	}
	return restore
}

func runVersion(args []string, e *env) error {
	flagSet := newFlagSet("version", e)
	long := flagSet.Bool("long", false, "show detailed version information")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	printVersion(e.stdout, *long)
	return nil
}

// printVersion prefers ldflags metadata and falls back to the module build
// info for "go install" builds.
func printVersion(w io.Writer, long bool) {
	v := version.Version
	info, hasInfo := debug.ReadBuildInfo()
	if v == "0.0.0" && hasInfo && info.Main.Version != "" {
		v = info.Main.Version
	}

	if !long {
		fmt.Fprintf(w, "%s version: %s\n", applicationName, v)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s version: %s, ", applicationName, v)
	fmt.Fprintf(&sb, "Build date: %s, ", version.BuildDate)
	fmt.Fprintf(&sb, "Build user: %s, ", version.BuildUser)
	fmt.Fprintf(&sb, "Git commit: %s, ", version.GitCommit)
	fmt.Fprintf(&sb, "Git branch: %s, ", version.GitBranch)
	fmt.Fprintf(&sb, "Go version: %s %s/%s\n", version.GoVersion, version.GoVersionOS, version.GoVersionArch)
	fmt.Fprint(w, sb.String())
}
