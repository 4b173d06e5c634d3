package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/slashdevops/cpuinfo"
)

type factsOptions struct {
	commonFlags
	cpu         int
	useKVM      bool
	format      string
	output      string
	fingerprint bool
	salt        string
	length      int
	prometheus  string
}

func runFacts(ctx context.Context, args []string, e *env) error {
	var opts factsOptions
	flagSet := newFlagSet("facts", e)
	opts.addFlags(flagSet)
	flagSet.IntVarP(&opts.cpu, "cpu", "c", 0, "processor to read")
	flagSet.BoolVarP(&opts.useKVM, "use-kvm", "u", false, "collect the leaves and MSRs KVM supports for guests")
	flagSet.StringVarP(&opts.format, "format", "o", "yaml", "stdout format: yaml, json or cbor")
	flagSet.StringVar(&opts.output, "output", "", "write a snapshot file; the extension selects format and compression")
	flagSet.BoolVar(&opts.fingerprint, "fingerprint", false, "print a fingerprint of the facts instead of the facts")
	flagSet.StringVar(&opts.salt, "salt", "", "salt for application-specific fingerprints")
	flagSet.IntVar(&opts.length, "length", 64, "fingerprint length: 32, 64, 128 or 256")
	flagSet.StringVar(&opts.prometheus, "prometheus", "", "also write a node exporter textfile")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("facts: unexpected argument %q", flagSet.Arg(0))
	}

	format, err := cpuinfo.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	length, err := cpuinfo.ParseFingerprintLength(opts.length)
	if err != nil {
		return err
	}

	logger := opts.logger(e.stderr)
	def, err := opts.definition(e, logger)
	if err != nil {
		return err
	}

	restore := pinCPU(e, opts.cpu, logger)
	defer restore()

	facts, err := collect(ctx, def, &opts, e, logger)
	if err != nil {
		return err
	}

	if opts.prometheus != "" {
		if err := cpuinfo.WritePrometheusTextfile(opts.prometheus, facts); err != nil {
			return err
		}
	}
	if opts.output != "" {
		if err := cpuinfo.WriteFactsFile(opts.output, facts); err != nil {
			return err
		}
		logger.Debug("snapshot written", "path", opts.output, "facts", len(facts))
	}

	if opts.fingerprint {
		_, err := fmt.Fprintln(e.stdout, cpuinfo.Fingerprint(facts, opts.salt, length))
		return err
	}
	if opts.output != "" {
		return nil
	}

	out := bufio.NewWriter(e.stdout)
	if err := cpuinfo.WriteFacts(out, facts, format); err != nil {
		return err
	}
	return out.Flush()
}

// collect reads facts from the host or from KVM. The host CPUID source is
// required; MSRs are best effort.
func collect(ctx context.Context, def *cpuinfo.Definition, opts *factsOptions, e *env, logger *slog.Logger) ([]cpuinfo.Fact[cpuinfo.Value], error) {
	var (
		src cpuinfo.RegisterSource
		msr cpuinfo.MSRSource
		err error
	)

	if opts.useKVM {
		if src, err = e.kvmCPUID(); err != nil {
			return nil, err
		}
		if msr, err = e.kvmMSR(); err != nil {
			return nil, err
		}
	} else {
		if src, err = e.hostCPUID(); err != nil {
			return nil, err
		}
		var closer io.Closer
		msr, closer, err = e.hostMSR(opts.cpu)
		if err != nil {
			logger.Warn("msrs not available", "cpu", opts.cpu, "error", err)
			msr = cpuinfo.NoMSR
		} else {
			defer closer.Close()
		}
	}

	collector := cpuinfo.New().WithCPUID(src).WithMSR(msr).WithLogger(logger)
	facts, err := collector.Facts(ctx, def)
	if err != nil {
		return nil, err
	}

	if diag := collector.Diagnostics(); diag != nil {
		logger.Debug("collection finished",
			"collected", len(diag.Collected),
			"skipped", diag.Skipped,
			"errors", len(diag.Errors),
		)
	}

	return facts, nil
}
