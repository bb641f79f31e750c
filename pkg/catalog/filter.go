// Package catalog filters lensing catalogs stored as CSV with column rules.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Op is a rule comparison
type Op string

const (
	Greater      Op = ">"
	GreaterEqual Op = ">="
	Less         Op = "<"
	LessEqual    Op = "<="
	Equal        Op = "=="
	NotEqual     Op = "!="
	In           Op = "in"
)

// ErrMissingColumn is returned when a required rule names an absent column
var ErrMissingColumn = errors.New("missing catalog column")

// Rule keeps rows whose Column satisfies Op against a constant Value, another
// column OtherColumn, or, for In, one of Values.
//
// Cells that do not parse as numbers never satisfy a numeric rule.
type Rule struct {
	Column      string
	Op          Op
	Value       float64
	OtherColumn string
	Values      []string

	// Optional rules are skipped when their column is absent
	Optional bool
}

func (r Rule) String() string {
	switch {
	case r.Op == In:
		return fmt.Sprintf("%s in {%s}", r.Column, strings.Join(r.Values, ", "))
	case r.OtherColumn != "":
		return fmt.Sprintf("%s %s %s", r.Column, r.Op, r.OtherColumn)
	}
	return fmt.Sprintf("%s %s %g", r.Column, r.Op, r.Value)
}

// Filter is a conjunction of rules
type Filter struct {
	Name  string
	Rules []Rule
}

// Stats reports what a filter run did
type Stats struct {
	Read    int
	Kept    int
	Skipped []string
}

// presets mirror the catalog cuts used for strong and weak lensing
var presets = map[string]Filter{
	"sl": {
		Name: "sl",
		Rules: []Rule{
			{Column: "parity", Op: In, Values: []string{"even", "odd"}, Optional: true},
			{Column: "morphology_flag", Op: Equal, Value: 0, Optional: true},
		},
	},
	"wl": {
		Name: "wl",
		Rules: []Rule{
			{Column: "snr", Op: Greater, Value: 10},
			{Column: "size", Op: Greater, OtherColumn: "psf_size"},
		},
	},
}

// Presets returns the names of the built-in filters
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns a copy of a built-in filter
func Preset(name string) (*Filter, error) {
	p, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown catalog preset %q (available: %s)", name, strings.Join(Presets(), ", "))
	}
	f := &Filter{Name: p.Name, Rules: make([]Rule, len(p.Rules))}
	copy(f.Rules, p.Rules)
	return f, nil
}

// compiled is a rule bound to column positions
type compiled struct {
	rule  Rule
	col   int
	other int
	set   map[string]bool
}

func (c compiled) keep(row []string) bool {
	cell := strings.TrimSpace(row[c.col])
	if c.rule.Op == In {
		return c.set[cell]
	}

	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(v) {
		return false
	}
	ref := c.rule.Value
	if c.other >= 0 {
		ref, err = strconv.ParseFloat(strings.TrimSpace(row[c.other]), 64)
		if err != nil || math.IsNaN(ref) {
			return false
		}
	}

	switch c.rule.Op {
	case Greater:
		return v > ref
	case GreaterEqual:
		return v >= ref
	case Less:
		return v < ref
	case LessEqual:
		return v <= ref
	case Equal:
		return v == ref
	case NotEqual:
		return v != ref
	}
	return false
}

func (f *Filter) compile(header []string) ([]compiled, []string, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	var rules []compiled
	var skipped []string
	for _, r := range f.Rules {
		col, ok := index[r.Column]
		other := -1
		if ok && r.OtherColumn != "" {
			other, ok = index[r.OtherColumn]
		}
		if !ok {
			if r.Optional {
				skipped = append(skipped, r.String())
				continue
			}
			return nil, nil, fmt.Errorf("%w: rule %q", ErrMissingColumn, r.String())
		}

		c := compiled{rule: r, col: col, other: other}
		switch r.Op {
		case In:
			c.set = make(map[string]bool, len(r.Values))
			for _, v := range r.Values {
				c.set[v] = true
			}
		case Greater, GreaterEqual, Less, LessEqual, Equal, NotEqual:
		default:
			return nil, nil, fmt.Errorf("unsupported operator %q in rule on %s", r.Op, r.Column)
		}
		rules = append(rules, c)
	}
	return rules, skipped, nil
}

// Apply copies the header and every row passing all rules from r to w
func (f *Filter) Apply(r io.Reader, w io.Writer) (Stats, error) {
	var stats Stats
	in := csv.NewReader(r)
	header, err := in.Read()
	if err != nil {
		return stats, fmt.Errorf("failed to read catalog header: %w", err)
	}

	rules, skipped, err := f.compile(header)
	if err != nil {
		return stats, err
	}
	stats.Skipped = skipped

	out := csv.NewWriter(w)
	if err := out.Write(header); err != nil {
		return stats, fmt.Errorf("failed to write catalog header: %w", err)
	}

	for {
		row, err := in.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("failed to read catalog row %d: %w", stats.Read+1, err)
		}
		stats.Read++

		keep := true
		for _, c := range rules {
			if !c.keep(row) {
				keep = false
				break
			}
		}
		if !keep {
			continue
		}
		if err := out.Write(row); err != nil {
			return stats, fmt.Errorf("failed to write catalog row: %w", err)
		}
		stats.Kept++
	}

	out.Flush()
	return stats, out.Error()
}
