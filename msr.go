package cpuinfo

import (
	"errors"
	"fmt"
	"strings"
)

// MSRSource reads model-specific registers. Errors wrapping
// [ErrNotAvailable] mean the register or the access path does not exist;
// every other error is an I/O failure.
type MSRSource interface {
	ReadMSR(address uint32) (uint64, error)
}

// MSRSourceFunc adapts a function to [MSRSource].
type MSRSourceFunc func(address uint32) (uint64, error)

// ReadMSR calls f.
func (f MSRSourceFunc) ReadMSR(address uint32) (uint64, error) {
	return f(address)
}

// NoMSR is the MSR source used when no access path is configured. Every
// read fails with [ErrNotAvailable].
var NoMSR MSRSource = MSRSourceFunc(func(uint32) (uint64, error) {
	return 0, ErrNotAvailable
})

// MSRMap is an in-memory [MSRSource] keyed by address.
type MSRMap map[uint32]uint64

// ReadMSR implements [MSRSource].
func (m MSRMap) ReadMSR(address uint32) (uint64, error) {
	v, ok := m[address]
	if !ok {
		return 0, fmt.Errorf("msr %#x: %w", address, ErrNotAvailable)
	}
	return v, nil
}

// MSRDesc is the schema entry for one model-specific register.
type MSRDesc struct {
	Name    string  `yaml:"name" json:"name"`
	Address uint32  `yaml:"address" json:"address"`
	Fields  []Field `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// String formats the register as "<name>: <address>".
func (d *MSRDesc) String() string {
	return fmt.Sprintf("%s: %#x", d.Name, d.Address)
}

// Validate reports registers that cannot be decoded.
func (d *MSRDesc) Validate() error {
	var errs []error
	if d.Name == "" {
		errs = append(errs, fmt.Errorf("msr %#x without name", d.Address))
	}
	for i := range d.Fields {
		if err := d.Fields[i].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("msr %q: %w", d.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Lint returns warnings for the register's fields.
func (d *MSRDesc) Lint() []string {
	var warnings []string
	for _, w := range lintFields(d.Fields) {
		warnings = append(warnings, fmt.Sprintf("msr %q: %s", d.Name, w))
	}
	return warnings
}

// Read fetches the register from src. Failures are returned as
// [*MSRError].
func (d *MSRDesc) Read(src MSRSource) (*MSRValue, error) {
	v, err := src.ReadMSR(d.Address)
	if err != nil {
		return nil, &MSRError{Name: d.Name, Address: d.Address, Err: err}
	}
	return &MSRValue{Desc: d, Value: v}, nil
}

// MSRValue is a register read from an [MSRSource].
type MSRValue struct {
	Desc  *MSRDesc
	Value uint64
}

// Facts decodes every field of the register into a fact prefixed with the
// register name.
func (v *MSRValue) Facts() []Fact[Value] {
	facts := make([]Fact[Value], 0, len(v.Desc.Fields))
	for i := range v.Desc.Fields {
		fact := Bind(v.Value, &v.Desc.Fields[i]).Fact()
		facts = append(facts, *fact.AddPath(v.Desc.Name))
	}
	return facts
}

// String renders the register value followed by one line per field.
func (v *MSRValue) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s = %#x\n", v.Desc, v.Value)
	for i := range v.Desc.Fields {
		fmt.Fprintf(&sb, "  %s\n", Bind(v.Value, &v.Desc.Fields[i]))
	}
	return sb.String()
}
