package cpuinfo

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Fact name prefixes for the two register families.
const (
	CategoryCPUID = "cpuid"
	CategoryMSR   = "msr"
)

// DiagnosticInfo records what happened to every schema entry during the
// last collection. Entries are keyed "cpuid/<leaf name>" or
// "msr/<register name>".
// Use [Collector.Diagnostics] to retrieve it after calling [Collector.Facts].
type DiagnosticInfo struct {
	Errors    map[string]error // Entries whose source failed unexpectedly
	Collected []string         // Entries that produced facts
	Skipped   []string         // Entries the source reported as absent
}

// Collector decodes a [Definition] against a CPUID source and an MSR source
// into a flat, ordered fact list.
//
// Collector methods are safe for concurrent use after configuration is
// complete.
type Collector struct {
	cpuid       RegisterSource
	msr         MSRSource
	logger      *slog.Logger
	diagnostics *DiagnosticInfo
	concurrency int
	mu          sync.Mutex
}

// New creates a Collector without a CPUID source and with [NoMSR]. Decoding
// uses one worker per available CPU.
func New() *Collector {
	return &Collector{
		msr:         NoMSR,
		concurrency: runtime.GOMAXPROCS(0),
	}
}

// WithCPUID sets the source queried for CPUID leaves. A nil source skips
// every leaf.
func (c *Collector) WithCPUID(src RegisterSource) *Collector {
	c.cpuid = src

	return c
}

// WithMSR sets the source queried for model-specific registers. A nil
// source is replaced by [NoMSR].
func (c *Collector) WithMSR(src MSRSource) *Collector {
	if src == nil {
		src = NoMSR
	}
	c.msr = src

	return c
}

// WithConcurrency limits the number of leaves and registers decoded in
// parallel. Values below 1 decode sequentially.
func (c *Collector) WithConcurrency(n int) *Collector {
	c.concurrency = max(n, 1)

	return c
}

// WithLogger sets an optional [*slog.Logger] for observability.
// When set, the collector logs skipped and failed entries, duplicate fact
// names and collection totals. A nil logger (the default) disables all
// logging with zero overhead.
func (c *Collector) WithLogger(logger *slog.Logger) *Collector {
	c.logger = logger

	return c
}

// decodeJob is one present leaf or readable MSR waiting to be decoded.
type decodeJob struct {
	key   string
	facts func() []Fact[Value]
}

// Facts collects every fact described by def. Sources are queried
// sequentially: leaves in ascending index order, then MSRs in declaration
// order. Present entries are then decoded in parallel and the result is
// returned in that same order, with names prefixed by "cpuid" or "msr".
//
// Absent leaves and MSRs are skipped. MSR read errors are recorded in
// [DiagnosticInfo.Errors] and do not stop the collection. Facts returns
// [ErrNoFacts] when nothing at all was collected, and the context error
// when ctx is cancelled.
func (c *Collector) Facts(ctx context.Context, def *Definition) ([]Fact[Value], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logInfo("collecting facts",
		"platform", runtime.GOOS,
		"leaves", len(def.CPUIDs),
		"msrs", len(def.MSRs),
	)

	diag := &DiagnosticInfo{
		Errors: make(map[string]error),
	}
	c.diagnostics = diag

	jobs, err := c.scan(ctx, def, diag)
	if err != nil {
		return nil, err
	}

	results := make([][]Fact[Value], len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = job.facts()

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var facts []Fact[Value]
	for i, r := range results {
		diag.Collected = append(diag.Collected, jobs[i].key)
		facts = append(facts, r...)
	}

	if len(facts) == 0 {
		c.logWarn("no facts collected", "skipped", len(diag.Skipped), "errors", diag.Errors)

		return nil, ErrNoFacts
	}

	for _, name := range NewFactSet(facts).Duplicates() {
		c.logDebug("duplicate fact name, last value wins", "fact", name)
	}

	c.logInfo("facts collected",
		"facts", len(facts),
		"collected", len(diag.Collected),
		"skipped", len(diag.Skipped),
		"errors_count", len(diag.Errors),
	)

	return facts, nil
}

// scan queries the sources and returns the entries that are present.
func (c *Collector) scan(ctx context.Context, def *Definition, diag *DiagnosticInfo) ([]decodeJob, error) {
	var jobs []decodeJob

	if c.cpuid == nil {
		c.logDebug("no cpuid source configured")
	} else {
		for _, l := range def.Leaves() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			key := CategoryCPUID + "/" + l.Desc.Name
			bound, ok := l.Desc.Bind(l.Leaf, c.cpuid)
			if !ok {
				diag.Skipped = append(diag.Skipped, key)
				c.logDebug("leaf not present", "leaf", l.Leaf, "name", l.Desc.Name)

				continue
			}
			jobs = append(jobs, decodeJob{key: key, facts: func() []Fact[Value] {
				return prefixFacts(bound.Facts(), CategoryCPUID)
			}})
		}
	}

	for i := range def.MSRs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		desc := &def.MSRs[i]
		key := CategoryMSR + "/" + desc.Name
		value, err := desc.Read(c.msr)
		if err != nil {
			var msrErr *MSRError
			if errors.As(err, &msrErr) && msrErr.NotAvailable() {
				diag.Skipped = append(diag.Skipped, key)
				c.logDebug("msr not available", "msr", desc.Name, "address", desc.Address)

				continue
			}
			diag.Errors[key] = err
			c.logWarn("msr read failed", "msr", desc.Name, "error", err)

			continue
		}
		jobs = append(jobs, decodeJob{key: key, facts: func() []Fact[Value] {
			return prefixFacts(value.Facts(), CategoryMSR)
		}})
	}

	return jobs, nil
}

// Diagnostics returns information about which entries were collected,
// skipped or failed during the last call to [Collector.Facts].
// Returns nil if Facts has not been called yet.
func (c *Collector) Diagnostics() *DiagnosticInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.diagnostics
}

// CollectFacts flattens every present leaf and MSR of def into a
// path-prefixed fact list. A nil msr source is treated as [NoMSR].
func CollectFacts(ctx context.Context, def *Definition, cpuid RegisterSource, msr MSRSource) ([]Fact[Value], error) {
	return New().WithCPUID(cpuid).WithMSR(msr).Facts(ctx, def)
}

// logDebug logs at debug level if a logger is configured.
func (c *Collector) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

// logInfo logs at info level if a logger is configured.
func (c *Collector) logInfo(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

// logWarn logs at warn level if a logger is configured.
func (c *Collector) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
