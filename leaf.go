package cpuinfo

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// LeafKind selects how a CPUID leaf is scanned, rendered and turned into
// facts.
type LeafKind string

const (
	// LeafStart is the first leaf of a range: EAX holds the highest leaf
	// of the range and EBX, EDX, ECX hold a 12 byte vendor string.
	LeafStart LeafKind = "start"
	// LeafString holds a 16 byte string packed into EAX, EBX, ECX, EDX.
	LeafString LeafKind = "string"
	// LeafBitField holds independent field lists for each register.
	LeafBitField LeafKind = "bitfield"
)

// Valid reports whether k is one of the known leaf kinds.
func (k LeafKind) Valid() bool {
	switch k {
	case LeafStart, LeafString, LeafBitField:
		return true
	default:
		return false
	}
}

// LeafType is the layout of one leaf. The field lists are only used by
// [LeafBitField] leaves.
type LeafType struct {
	Kind LeafKind `yaml:"type" json:"type"`
	EAX  []Field  `yaml:"eax,omitempty" json:"eax,omitempty"`
	EBX  []Field  `yaml:"ebx,omitempty" json:"ebx,omitempty"`
	ECX  []Field  `yaml:"ecx,omitempty" json:"ecx,omitempty"`
	EDX  []Field  `yaml:"edx,omitempty" json:"edx,omitempty"`
}

// slot is one register of a quad together with the fields configured for
// it.
type slot struct {
	name   string
	reg    uint32
	fields []Field
}

func (t *LeafType) slots(regs Registers) [4]slot {
	return [4]slot{
		{"eax", regs.EAX, t.EAX},
		{"ebx", regs.EBX, t.EBX},
		{"ecx", regs.ECX, t.ECX},
		{"edx", regs.EDX, t.EDX},
	}
}

// LeafScan is the presence-level result of querying a leaf. An absent leaf
// has no quads; it is never represented by a zeroed quad.
type LeafScan struct {
	Quads []Registers
}

// Present reports whether the source returned data for the leaf.
func (s LeafScan) Present() bool {
	return len(s.Quads) > 0
}

// ScanSubLeaves queries src for leaf. Start leaves are present whenever
// the source answers; string and bit-field leaves are also absent when the
// answer is [Registers.Empty].
func (t *LeafType) ScanSubLeaves(leaf uint32, src RegisterSource) LeafScan {
	regs, ok := src.Register(leaf, 0)
	if !ok {
		return LeafScan{}
	}
	switch t.Kind {
	case LeafStart:
		return LeafScan{Quads: []Registers{regs}}
	case LeafString, LeafBitField:
		if regs.Empty() {
			return LeafScan{}
		}
		return LeafScan{Quads: []Registers{regs}}
	default:
		return LeafScan{}
	}
}

// Render writes the decoded leaf to w.
func (t *LeafType) Render(w io.Writer, quads []Registers) error {
	if len(quads) == 0 {
		return nil
	}
	regs := quads[0]
	switch t.Kind {
	case LeafStart:
		_, err := fmt.Fprintf(w, "'%s' max leaf:%d", vendorText(regs), regs.EAX)
		return err
	case LeafString:
		_, err := fmt.Fprintf(w, "'%s'", stringText(regs))
		return err
	case LeafBitField:
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
		for _, s := range t.slots(regs) {
			if err := renderSlot(w, s); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown leaf type %q", t.Kind)
	}
}

func renderSlot(w io.Writer, s slot) error {
	if _, err := fmt.Fprintf(w, " %s: %#8x\n", s.name, s.reg); err != nil {
		return err
	}
	for i := range s.fields {
		if _, err := fmt.Fprintf(w, "  %s\n", Bind(Register(s.reg), &s.fields[i])); err != nil {
			return err
		}
	}
	return nil
}

// Facts decodes the leaf into facts named relative to the leaf: start
// leaves yield "max_leaves" and "type", string leaves yield "value" and
// bit-field leaves yield "<register>/<field>" for every configured field.
func (t *LeafType) Facts(quads []Registers) []Fact[Value] {
	if len(quads) == 0 {
		return nil
	}
	regs := quads[0]
	switch t.Kind {
	case LeafStart:
		return []Fact[Value]{
			NewFact("max_leaves", UintValue(uint64(regs.EAX))),
			NewFact("type", StringValue(vendorText(regs))),
		}
	case LeafString:
		return []Fact[Value]{NewFact("value", StringValue(stringText(regs)))}
	case LeafBitField:
		var facts []Fact[Value]
		for _, s := range t.slots(regs) {
			for i := range s.fields {
				fact := Bind(Register(s.reg), &s.fields[i]).Fact()
				facts = append(facts, *fact.AddPath(s.name))
			}
		}
		return facts
	default:
		return nil
	}
}

// vendorText decodes the vendor identifier packed into EBX, EDX, ECX.
func vendorText(regs Registers) string {
	return registerText(regs.EBX, regs.EDX, regs.ECX)
}

// stringText decodes the identifier packed into EAX, EBX, ECX, EDX.
func stringText(regs Registers) string {
	return registerText(regs.EAX, regs.EBX, regs.ECX, regs.EDX)
}

// registerText concatenates the little-endian bytes of regs. Trailing NUL
// padding is dropped and invalid UTF-8 is replaced.
func registerText(regs ...uint32) string {
	buf := make([]byte, 0, 4*len(regs))
	for _, r := range regs {
		buf = binary.LittleEndian.AppendUint32(buf, r)
	}
	buf = bytes.TrimRight(buf, "\x00")
	return strings.ToValidUTF8(string(buf), "�")
}

// LeafDesc is the schema entry for one leaf, keyed by leaf index in the
// [Definition].
type LeafDesc struct {
	Name     string `yaml:"name" json:"name"`
	LeafType `yaml:",inline"`
}

// Validate reports leaves that cannot be dispatched.
func (d *LeafDesc) Validate() error {
	var errs []error
	if d.Name == "" {
		errs = append(errs, errors.New("leaf without name"))
	}
	if !d.Kind.Valid() {
		errs = append(errs, fmt.Errorf("leaf %q: unknown type %q", d.Name, d.Kind))
	}
	for _, s := range d.slots(Registers{}) {
		for i := range s.fields {
			if err := s.fields[i].Validate(); err != nil {
				errs = append(errs, fmt.Errorf("leaf %q %s: %w", d.Name, s.name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Lint returns warnings for fields that will always decode as zero and for
// field names repeated within one register, which collapse into a single
// fact.
func (d *LeafDesc) Lint() []string {
	var warnings []string
	if d.Kind != LeafBitField {
		for _, s := range d.slots(Registers{}) {
			if len(s.fields) > 0 {
				warnings = append(warnings, fmt.Sprintf("leaf %q: %s fields are ignored by %s leaves", d.Name, s.name, d.Kind))
			}
		}
		return warnings
	}
	for _, s := range d.slots(Registers{}) {
		for _, w := range lintFields(s.fields) {
			warnings = append(warnings, fmt.Sprintf("leaf %q %s: %s", d.Name, s.name, w))
		}
	}
	return warnings
}

// lintFields collects field warnings and repeated names.
func lintFields(fields []Field) []string {
	var warnings []string
	seen := make(map[string]bool, len(fields))
	for i := range fields {
		warnings = append(warnings, fields[i].Lint()...)
		if seen[fields[i].Name] {
			warnings = append(warnings, fmt.Sprintf("duplicate field name %q", fields[i].Name))
		}
		seen[fields[i].Name] = true
	}
	return warnings
}

// Bind scans leaf through src and returns the bound leaf, or false when the
// leaf is absent.
func (d *LeafDesc) Bind(leaf uint32, src RegisterSource) (*BoundLeaf, bool) {
	scan := d.ScanSubLeaves(leaf, src)
	if !scan.Present() {
		return nil, false
	}
	return &BoundLeaf{Desc: d, Leaf: leaf, Quads: scan.Quads}, true
}

// Render writes "<name>: " followed by the decoded leaf.
func (d *LeafDesc) Render(w io.Writer, quads []Registers) error {
	if _, err := fmt.Fprintf(w, "%s: ", d.Name); err != nil {
		return err
	}
	return d.LeafType.Render(w, quads)
}

// BoundLeaf is a leaf the source confirmed present, together with the
// quads it returned.
type BoundLeaf struct {
	Desc  *LeafDesc
	Leaf  uint32
	Quads []Registers
}

// Facts returns the leaf facts prefixed with the leaf name.
func (b *BoundLeaf) Facts() []Fact[Value] {
	return prefixFacts(b.Desc.Facts(b.Quads), b.Desc.Name)
}

// String renders the leaf as "<name>: <decoded leaf>".
func (b *BoundLeaf) String() string {
	var sb strings.Builder
	_ = b.Desc.Render(&sb, b.Quads)
	return sb.String()
}
