package lustre

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/LenBoer/distributed-storage-visualization/internal/report"
)

const reportGetstripe = "getstripe"

// Object rows carry no usable labels, so fields are taken by position.
// Offsets match the lfs 2.x output.
const (
	// - 0: { l_ost_idx: 0, l_fid: [0x100000000:0x2:0x0] }
	pflObjColIndex   = 4
	pflObjColFID     = 6
	pflObjMinColumns = 7

	// obdidx objid objid group
	plainObjColIndex   = 0
	plainObjColObjID   = 1
	plainObjColGroup   = 3
	plainObjMinColumns = 4
)

// Composite layout header, in the order lfs prints it after the filename
var pflHeaderKeys = []string{"lcm_layout_gen", "lcm_mirror_count", "lcm_entry_count"}

const pflTableSentinel = "lmm_objects:"

type stripeLineKind int

const (
	stripeLineInvalid stripeLineKind = iota
	stripeLineAttr
	stripeLineTable
	stripeLineObject
)

func classifyPFLLine(l report.Line) stripeLineKind {
	switch n := l.Len(); {
	case n == 2:
		return stripeLineAttr
	case n == 1:
		return stripeLineTable
	case n >= pflObjMinColumns:
		return stripeLineObject
	default:
		return stripeLineInvalid
	}
}

func classifyPlainLine(l report.Line, inTable bool) stripeLineKind {
	switch n := l.Len(); {
	case n == 2:
		return stripeLineAttr
	case inTable && n > 2:
		return stripeLineObject
	default:
		// the column header (or a bare sentinel) opens the object table
		return stripeLineTable
	}
}

// ParseStripe parses the `lfs getstripe <file>` output of one file.
// A report without any layout is not an error: the returned layout carries
// the raw text in Error instead.
func ParseStripe(text string) (*StripeLayout, error) {
	p := report.Paragraphs
	p.AllowEmpty = true
	doc, err := report.Split(text, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", reportGetstripe, err)
	}

	blocks := doc.Collect()
	switch {
	case len(blocks) == 0:
		return &StripeLayout{Error: text}, nil
	case isProgressive(blocks):
		return parseProgressiveLayout(blocks)
	case len(blocks) == 1:
		layout, err := parsePlainLayout(blocks[0])
		if err != nil {
			return nil, err
		}
		if len(layout.Components) == 0 {
			return &StripeLayout{Error: text}, nil
		}
		return layout, nil
	default:
		return nil, report.MalformedBlock(reportGetstripe, blocks[1], "plain layout continues after a blank line")
	}
}

// isProgressive reports whether the filename is followed by the composite
// header. A composite layout with one component is a single block.
func isProgressive(blocks []report.Block) bool {
	first := blocks[0]
	if len(first.Lines) < 2 {
		return false
	}
	return strings.TrimSuffix(first.Lines[1].Token(0), ":") == pflHeaderKeys[0]
}

func parsePlainLayout(block report.Block) (*StripeLayout, error) {
	layout := &StripeLayout{Filename: strings.TrimSpace(block.Lines[0].Raw)}
	comp := Component{}
	inTable := false

	for _, line := range block.Lines[1:] {
		switch classifyPlainLine(line, inTable) {
		case stripeLineAttr:
			setAttribute(&comp, line)
		case stripeLineTable:
			inTable = true
		case stripeLineObject:
			if line.Len() < plainObjMinColumns {
				return nil, report.Malformed(reportGetstripe, line,
					"object row wants %d columns, got %d", plainObjMinColumns, line.Len())
			}
			idx, err := strconv.Atoi(line.Token(plainObjColIndex))
			if err != nil {
				return nil, report.Malformed(reportGetstripe, line, "bad obdidx %q", line.Token(plainObjColIndex))
			}
			comp.Objects = append(comp.Objects, StripeObject{
				DeviceIndex: idx,
				ObjectID:    line.Token(plainObjColObjID),
				Group:       line.Token(plainObjColGroup),
			})
		}
	}

	if len(comp.Attributes) > 0 || len(comp.Objects) > 0 {
		layout.Components = []Component{comp}
	}
	return layout, nil
}

func parseProgressiveLayout(blocks []report.Block) (*StripeLayout, error) {
	first := blocks[0]
	if len(first.Lines) < 1+len(pflHeaderKeys) {
		return nil, report.MalformedBlock(reportGetstripe, first, "composite header wants %d lines", 1+len(pflHeaderKeys))
	}

	layout := &StripeLayout{
		Filename:    strings.TrimSpace(first.Lines[0].Raw),
		Progressive: true,
	}
	header := make([]*int, len(pflHeaderKeys))
	for i, key := range pflHeaderKeys {
		line := first.Lines[1+i]
		if line.Len() != 2 || strings.TrimSuffix(line.Token(0), ":") != key {
			return nil, report.Malformed(reportGetstripe, line, "want %s", key)
		}
		v, err := strconv.Atoi(line.Token(1))
		if err != nil {
			return nil, report.Malformed(reportGetstripe, line, "bad %s %q", key, line.Token(1))
		}
		header[i] = &v
	}
	layout.Generation, layout.MirrorCount, layout.ComponentCount = header[0], header[1], header[2]

	for i, block := range blocks {
		lines := block.Lines
		if i == 0 {
			lines = lines[1+len(pflHeaderKeys):]
		}
		comp, err := parseComponent(lines)
		if err != nil {
			return nil, err
		}
		layout.Components = append(layout.Components, comp)
	}
	return layout, nil
}

func parseComponent(lines []report.Line) (Component, error) {
	var comp Component
	inTable := false

	for _, line := range lines {
		switch classifyPFLLine(line) {
		case stripeLineAttr:
			setAttribute(&comp, line)
		case stripeLineTable:
			inTable = true
		case stripeLineObject:
			if !inTable {
				return Component{}, report.Malformed(reportGetstripe, line, "object row before %s", pflTableSentinel)
			}
			raw := strings.TrimSuffix(line.Token(pflObjColIndex), ",")
			idx, err := strconv.Atoi(raw)
			if err != nil {
				return Component{}, report.Malformed(reportGetstripe, line, "bad l_ost_idx %q", raw)
			}
			fid := strings.TrimSuffix(strings.TrimPrefix(line.Token(pflObjColFID), "["), "]")
			comp.Objects = append(comp.Objects, StripeObject{DeviceIndex: idx, FileID: fid})
		default:
			return Component{}, report.Malformed(reportGetstripe, line, "unexpected %d columns", line.Len())
		}
	}
	return comp, nil
}

func setAttribute(comp *Component, line report.Line) {
	if comp.Attributes == nil {
		comp.Attributes = make(map[string]string)
	}
	comp.Attributes[strings.TrimSuffix(line.Token(0), ":")] = line.Token(1)
}

// Format renders the layout in the canonical lfs getstripe shape.
// ParseStripe(l.Format()) yields a layout equal to l.
func (l *StripeLayout) Format() string {
	if l.IsEmpty() {
		return l.Error
	}

	var sb strings.Builder
	sb.WriteString(l.Filename + "\n")

	if !l.Progressive {
		if len(l.Components) > 0 {
			comp := l.Components[0]
			writeAttributes(&sb, "", comp.Attributes)
			sb.WriteString("\tobdidx\t\t objid\t\t objid\t\t group\n")
			for _, obj := range comp.Objects {
				fmt.Fprintf(&sb, "\t%6d\t%14s\t%14s\t%14s\n",
					obj.DeviceIndex, obj.ObjectID, objectHex(obj.ObjectID), obj.Group)
			}
		}
		sb.WriteString("\n")
		return sb.String()
	}

	for i, v := range []*int{l.Generation, l.MirrorCount, l.ComponentCount} {
		fmt.Fprintf(&sb, "  %-18s %d\n", pflHeaderKeys[i]+":", deref(v))
	}
	for i, comp := range l.Components {
		if i > 0 {
			sb.WriteString("\n")
		}
		writeAttributes(&sb, "    ", comp.Attributes)
		// a component needs at least one line to survive as a block
		if comp.Objects != nil || (i > 0 && len(comp.Attributes) == 0) {
			sb.WriteString("      " + pflTableSentinel + "\n")
		}
		for j, obj := range comp.Objects {
			fmt.Fprintf(&sb, "      - %d: { l_ost_idx: %d, l_fid: [%s] }\n", j, obj.DeviceIndex, obj.FileID)
		}
	}
	sb.WriteString("\n")
	return sb.String()
}

func writeAttributes(sb *strings.Builder, indent string, attrs map[string]string) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(sb, "%s%-20s %s\n", indent, k+":", attrs[k])
	}
}

func objectHex(objID string) string {
	if v, err := strconv.ParseUint(objID, 10, 64); err == nil {
		return "0x" + strconv.FormatUint(v, 16)
	}
	return objID
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
