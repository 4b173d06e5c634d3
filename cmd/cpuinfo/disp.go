package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"

	"github.com/slashdevops/cpuinfo"
)

type dispOptions struct {
	commonFlags
	cpu     int
	raw     bool
	skipCPU bool
	skipKVM bool
	skipMSR bool
}

func runDisp(args []string, e *env) error {
	var opts dispOptions
	flagSet := newFlagSet("disp", e)
	opts.addFlags(flagSet)
	flagSet.IntVarP(&opts.cpu, "cpu", "c", 0, "processor to read")
	flagSet.BoolVarP(&opts.raw, "raw", "r", false, "dump every leaf and sub-leaf without decoding")
	flagSet.BoolVar(&opts.skipCPU, "skip-cpu", false, "do not display host CPUID leaves")
	flagSet.BoolVar(&opts.skipKVM, "skip-kvm", false, "do not display KVM supported leaves and MSRs")
	flagSet.BoolVar(&opts.skipMSR, "skip-msr", false, "do not display MSRs")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("disp: unexpected argument %q", flagSet.Arg(0))
	}

	logger := opts.logger(e.stderr)
	restore := pinCPU(e, opts.cpu, logger)
	defer restore()

	out := bufio.NewWriter(e.stdout)
	if opts.raw {
		src, err := e.hostCPUID()
		if err != nil {
			return err
		}
		if err := cpuinfo.RenderRaw(out, src); err != nil {
			return err
		}
		return out.Flush()
	}

	def, err := opts.definition(e, logger)
	if err != nil {
		return err
	}
	if err := display(out, def, &opts, e, logger); err != nil {
		return err
	}
	return out.Flush()
}

// display writes the CPUID, KVM-CPUID, MSRS and KVM-MSR sections. A source
// that cannot be opened is logged and its section left out.
func display(w io.Writer, def *cpuinfo.Definition, opts *dispOptions, e *env, logger *slog.Logger) error {
	if !opts.skipCPU {
		if src, err := e.hostCPUID(); err != nil {
			logger.Warn("cpuid not available", "error", err)
		} else if err := section(w, "CPUID:", func() error { return cpuinfo.RenderLeaves(w, def, src) }); err != nil {
			return err
		}
	}

	if !opts.skipKVM {
		if src, err := e.kvmCPUID(); err != nil {
			logger.Warn("kvm cpuid not available", "error", err)
		} else if err := section(w, "KVM-CPUID:", func() error { return cpuinfo.RenderLeaves(w, def, src) }); err != nil {
			return err
		}
	}

	if opts.skipMSR {
		return nil
	}

	if msr, closer, err := e.hostMSR(opts.cpu); err != nil {
		logger.Warn("msrs not available", "cpu", opts.cpu, "error", err)
	} else {
		err := section(w, "MSRS:", func() error { return cpuinfo.RenderMSRs(w, def, msr) })
		closer.Close()
		if err != nil {
			return err
		}
	}

	if !opts.skipKVM {
		if msr, err := e.kvmMSR(); err != nil {
			logger.Warn("kvm msrs not available", "error", err)
		} else if err := section(w, "KVM-MSR:", func() error { return cpuinfo.RenderMSRs(w, def, msr) }); err != nil {
			return err
		}
	}

	return nil
}

func section(w io.Writer, title string, body func() error) error {
	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}
	return body()
}
