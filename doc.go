// Package cpuinfo decodes CPUID leaves and model-specific registers (MSRs)
// into named, typed facts, and compares fact snapshots taken at different
// times or on different machines.
//
// # Overview
//
// A [Definition] is the decoding schema. It maps leaf indices to a
// [LeafDesc] and lists [MSRDesc] entries. Every register slot of a leaf or
// MSR carries [Field] entries of one of four types:
//
//   - [FieldFlag]: a single bit
//   - [FieldInt]: an unsigned bit range [start, end)
//   - [FieldX86Model]: the display model of CPUID leaf 1
//   - [FieldX86Family]: the display family of CPUID leaf 1
//
// Leaves come in three kinds: [LeafStart] (vendor string and maximum
// leaf), [LeafString] (16 bytes of identification text) and [LeafBitField].
//
// # Quick Start
//
//	src, err := cpuinfo.NewHostSource()
//	if err != nil {
//		return err
//	}
//	facts, err := cpuinfo.CollectFacts(ctx, cpuinfo.DefaultDefinition(), src, nil)
//
// Facts are named by path, such as "cpuid/features/edx/sse2" or
// "msr/platform_info/max_non_turbo_ratio".
//
// # Register Sources
//
// Raw values come from a [RegisterSource] and an [MSRSource]:
//
//   - [HostSource] executes CPUID on the running processor (amd64)
//   - [LinuxMSR] reads /dev/cpu/N/msr
//   - [KVMSource] and [KVMMSR] report what KVM supports for guests
//   - [MapSource] and [MSRMap] hold captured values for replay and tests
//
// A leaf the source does not report is skipped, never decoded as zero. A
// field that does not fit its register decodes to the zero value of its
// type and [DecodeResult.Defaulted] is set.
//
// # Collecting and Diagnostics
//
// [Collector] follows the builder style:
//
//	collector := cpuinfo.New().
//		WithCPUID(src).
//		WithMSR(msr).
//		WithLogger(logger)
//	facts, err := collector.Facts(ctx, def)
//	diag := collector.Diagnostics()
//
// MSR read failures do not stop a collection. They are listed in
// [DiagnosticInfo.Errors].
//
// # Snapshots and Diffs
//
// [WriteFactsFile] and [ReadFactsFile] store facts as YAML, JSON or
// deterministic CBOR, optionally compressed with zstd or lz4 based on the
// file extension. [Diff] compares two snapshots by fact name; the report
// returns an error matching [ErrDifferencesFound] from [DiffReport.Err]
// when they differ.
//
// # Fingerprints and Export
//
// [Fingerprint] hashes a fact list with keyed BLAKE3 into a stable 32, 64,
// 128 or 256 character identifier. [WritePrometheusTextfile] exports facts for the
// node exporter textfile collector.
//
// # CLI Tool
//
// The cpuinfo command in cmd/cpuinfo wraps the package:
//
//	cpuinfo disp --cpu 0
//	cpuinfo facts --output host.yaml
//	cpuinfo diff before.yaml after.yaml
package cpuinfo
