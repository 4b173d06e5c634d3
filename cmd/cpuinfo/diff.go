package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/slashdevops/cpuinfo"
	"github.com/slashdevops/cpuinfo/internal/codec"
)

func runDiff(args []string, e *env) error {
	var opts commonFlags
	flagSet := newFlagSet("diff", e)
	opts.addFlags(flagSet)
	format := flagSet.StringP("format", "o", "yaml", "report format: yaml, json or text")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 2 {
		return fmt.Errorf("diff: want FROM and TO snapshot files, got %d arguments", flagSet.NArg())
	}

	logger := opts.logger(e.stderr)
	from, err := readSnapshot(flagSet.Arg(0), logger)
	if err != nil {
		return err
	}
	to, err := readSnapshot(flagSet.Arg(1), logger)
	if err != nil {
		return err
	}

	report := cpuinfo.DiffSets(from, to)
	logger.Debug("compared snapshots",
		"from", flagSet.Arg(0),
		"to", flagSet.Arg(1),
		"added", len(report.Added),
		"removed", len(report.Removed),
		"changed", len(report.Changed),
	)

	if !report.Equivalent() || opts.verbose {
		if err := writeReport(e.stdout, report, *format); err != nil {
			return err
		}
	}

	return report.Err()
}

// readSnapshot loads a snapshot and indexes it by fact name. Repeated names
// are logged at debug level; the last occurrence wins.
func readSnapshot(path string, logger *slog.Logger) (*cpuinfo.FactSet[cpuinfo.Value], error) {
	facts, err := cpuinfo.ReadFactsFile(path)
	if err != nil {
		return nil, err
	}
	if format, _ := cpuinfo.FormatFromPath(path); format == cpuinfo.FormatCBOR {
		logCBOR(logger, path, facts)
	}

	set := cpuinfo.NewFactSet(facts)
	for _, name := range set.Duplicates() {
		logger.Debug("duplicate fact name, last value wins", "path", path, "fact", name)
	}
	return set, nil
}

// logCBOR logs a binary snapshot in CBOR diagnostic notation.
func logCBOR(logger *slog.Logger, path string, facts []cpuinfo.Fact[cpuinfo.Value]) {
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	data, err := codec.Marshal(facts)
	if err != nil {
		logger.Debug("encoding snapshot", "path", path, "error", err)
		return
	}
	diag, err := codec.Diagnose(data)
	if err != nil {
		logger.Debug("diagnosing snapshot", "path", path, "error", err)
		return
	}
	logger.Debug("cbor snapshot", "path", path, "diagnostic", diag)
}

func writeReport(w io.Writer, report *cpuinfo.DiffReport[cpuinfo.Value], format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "text":
		return cpuinfo.RenderDiff(w, report)
	default:
		return fmt.Errorf("diff report format %q: %w", format, cpuinfo.ErrUnknownFormat)
	}
}
