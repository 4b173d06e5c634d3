package cpuinfo

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderLeaf renders one decoded leaf as "<leaf>: <name>: <decoded leaf>".
func RenderLeaf(desc *LeafDesc, leaf uint32, quads []Registers) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%#010x: ", leaf)
	_ = desc.Render(&sb, quads)
	return sb.String()
}

// RenderMSR renders one register value followed by its decoded fields.
func RenderMSR(desc *MSRDesc, value uint64) string {
	return (&MSRValue{Desc: desc, Value: value}).String()
}

// RenderLeaves writes every leaf of def that src reports present, in
// ascending leaf order.
func RenderLeaves(w io.Writer, def *Definition, src RegisterSource) error {
	for _, l := range def.Leaves() {
		bound, ok := l.Desc.Bind(l.Leaf, src)
		if !ok {
			continue
		}
		if _, err := fmt.Fprintln(w, RenderLeaf(bound.Desc, bound.Leaf, bound.Quads)); err != nil {
			return err
		}
	}
	return nil
}

// RenderMSRs writes every MSR of def in declaration order. Registers that
// cannot be read are listed with their error.
func RenderMSRs(w io.Writer, def *Definition, src MSRSource) error {
	for i := range def.MSRs {
		desc := &def.MSRs[i]
		var err error
		if v, readErr := desc.Read(src); readErr != nil {
			_, err = fmt.Fprintf(w, "%s error: %v\n", desc, readErr)
		} else {
			_, err = fmt.Fprintln(w, v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// RenderDefinition writes the "CPUID:" section for src and the "MSRS:"
// section for msr. A nil source omits its section.
func RenderDefinition(w io.Writer, def *Definition, src RegisterSource, msr MSRSource) error {
	if src != nil {
		if _, err := fmt.Fprintln(w, "CPUID:"); err != nil {
			return err
		}
		if err := RenderLeaves(w, def, src); err != nil {
			return err
		}
	}
	if msr != nil {
		if _, err := fmt.Fprintln(w, "MSRS:"); err != nil {
			return err
		}
		if err := RenderMSRs(w, def, msr); err != nil {
			return err
		}
	}
	return nil
}

// RenderRaw writes every leaf and sub-leaf src answers, one
// "(leaf,sub_leaf) eax ebx ecx edx" line each, for the basic, hypervisor
// and extended ranges.
func RenderRaw(w io.Writer, src RegisterSource) error {
	for _, fn := range Functions {
		for addr, regs := range ScanFunction(src, fn) {
			if _, err := fmt.Fprintf(w, "%s %s\n", addr, regs); err != nil {
				return err
			}
		}
	}
	return nil
}

// diffStyles colours diff lines. Colour is only emitted when the renderer's
// writer is a terminal.
type diffStyles struct {
	added   lipgloss.Style
	removed lipgloss.Style
	changed lipgloss.Style
	header  lipgloss.Style
}

func newDiffStyles(w io.Writer) diffStyles {
	r := lipgloss.NewRenderer(w)
	return diffStyles{
		added:   r.NewStyle().Foreground(lipgloss.Color("2")),
		removed: r.NewStyle().Foreground(lipgloss.Color("1")),
		changed: r.NewStyle().Foreground(lipgloss.Color("3")),
		header:  r.NewStyle().Bold(true),
	}
}

// RenderDiff writes a human-readable diff: "+" lines for added facts, "-"
// lines for removed facts and "~" lines for changed facts, each section
// sorted by name.
func RenderDiff[V any](w io.Writer, report *DiffReport[V]) error {
	if report.Equivalent() {
		_, err := fmt.Fprintln(w, "no differences")
		return err
	}

	styles := newDiffStyles(w)
	var sb strings.Builder
	section := func(title string, n int) {
		if n > 0 {
			sb.WriteString(styles.header.Render(fmt.Sprintf("%s (%d):", title, n)))
			sb.WriteByte('\n')
		}
	}

	section("added", len(report.Added))
	for _, f := range report.Added {
		sb.WriteString(styles.added.Render(fmt.Sprintf("+ %s = %v", f.Name, f.Value)))
		sb.WriteByte('\n')
	}
	section("removed", len(report.Removed))
	for _, f := range report.Removed {
		sb.WriteString(styles.removed.Render(fmt.Sprintf("- %s = %v", f.Name, f.Value)))
		sb.WriteByte('\n')
	}
	section("changed", len(report.Changed))
	for _, c := range report.Changed {
		sb.WriteString(styles.changed.Render(fmt.Sprintf("~ %s: %v -> %v", c.Before.Name, c.Before.Value, c.After.Value)))
		sb.WriteByte('\n')
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
