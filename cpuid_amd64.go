//go:build amd64

package cpuinfo

// cpuidex executes CPUID with EAX=leaf and ECX=subLeaf.
func cpuidex(leaf, subLeaf uint32) (eax, ebx, ecx, edx uint32)

var hostCPUID = func(leaf, subLeaf uint32) Registers {
	eax, ebx, ecx, edx := cpuidex(leaf, subLeaf)
	return Registers{EAX: eax, EBX: ebx, ECX: ecx, EDX: edx}
}
