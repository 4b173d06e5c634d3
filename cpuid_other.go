//go:build !amd64

package cpuinfo

// hostCPUID is nil where the CPUID instruction is unavailable.
var hostCPUID func(leaf, subLeaf uint32) Registers
