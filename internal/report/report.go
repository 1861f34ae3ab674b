// Package report splits captured storage tool output into blocks of
// whitespace-tokenized lines. Every report parser in this module is built on it.
package report

import (
	"iter"
	"strings"
)

// Line is one line of a report split on whitespace
type Line struct {
	No     int // 1-based position in the raw text
	Raw    string
	Tokens []string
}

// Len returns the token count
func (l Line) Len() int { return len(l.Tokens) }

// Token returns the i-th token or "" when the line is shorter
func (l Line) Token(i int) string {
	if i < 0 || i >= len(l.Tokens) {
		return ""
	}
	return l.Tokens[i]
}

// Block is a run of lines between two separators
type Block struct {
	Index int
	Lines []Line
}

// Empty reports whether the block holds no lines
func (b Block) Empty() bool { return len(b.Lines) == 0 }

// Raw reassembles the block text for error context
func (b Block) Raw() string {
	raws := make([]string, len(b.Lines))
	for i, l := range b.Lines {
		raws[i] = l.Raw
	}
	return strings.Join(raws, "\n")
}

// SeparatorFunc decides whether a line ends the current block
type SeparatorFunc func(Line) bool

// BlankLine treats lines without tokens as separators
func BlankLine(l Line) bool { return l.Len() == 0 }

// FewerTokens treats lines with fewer than n tokens as separators
func FewerTokens(n int) SeparatorFunc {
	return func(l Line) bool { return l.Len() < n }
}

// Policy controls how raw text is cut into blocks
type Policy struct {
	// SkipLines discards a fixed preamble before splitting
	SkipLines int
	// Separator defaults to BlankLine
	Separator SeparatorFunc
	// Collapse folds runs of separators into a single boundary.
	// Without it every separator line starts a new block, so blocks can be
	// counted by position.
	Collapse bool
	// DropTrailingEmpty removes the empty block produced by a report that
	// ends with a separator
	DropTrailingEmpty bool
	// AllowEmpty accepts empty text instead of failing with ErrEmptyInput
	AllowEmpty bool
}

// Paragraphs is the policy for blank-line separated reports
var Paragraphs = Policy{
	Separator:         BlankLine,
	Collapse:          true,
	DropTrailingEmpty: true,
}

// Document is a tokenized report. Blocks and Lines can be ranged over any
// number of times; each pass walks the text again.
type Document struct {
	policy Policy
	lines  []Line
}

// Split tokenizes text according to p
func Split(text string, p Policy) (*Document, error) {
	if p.Separator == nil {
		p.Separator = BlankLine
	}
	if strings.TrimSpace(text) == "" && !p.AllowEmpty {
		return nil, ErrEmptyInput
	}

	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	// a final newline terminates the last line, it does not open a new one
	if n := len(raw); n > 0 && raw[n-1] == "" {
		raw = raw[:n-1]
	}

	doc := &Document{policy: p}
	for i, s := range raw {
		if i < p.SkipLines {
			continue
		}
		doc.lines = append(doc.lines, Line{
			No:     i + 1,
			Raw:    s,
			Tokens: strings.Fields(s),
		})
	}
	return doc, nil
}

// Len returns the number of lines after the preamble
func (d *Document) Len() int { return len(d.lines) }

// Lines yields every line after the preamble, separators included
func (d *Document) Lines() iter.Seq[Line] {
	return func(yield func(Line) bool) {
		for _, l := range d.lines {
			if !yield(l) {
				return
			}
		}
	}
}

// Blocks yields blocks in report order together with their index
func (d *Document) Blocks() iter.Seq2[int, Block] {
	return func(yield func(int, Block) bool) {
		if len(d.lines) == 0 {
			return
		}

		var (
			cur     []Line
			idx     int
			lastSep bool
		)
		emit := func() bool {
			b := Block{Index: idx, Lines: cur}
			idx++
			cur = nil
			return yield(b.Index, b)
		}

		for _, l := range d.lines {
			if !d.policy.Separator(l) {
				cur = append(cur, l)
				lastSep = false
				continue
			}
			if d.policy.Collapse && len(cur) == 0 {
				lastSep = true
				continue
			}
			lastSep = true
			if !emit() {
				return
			}
		}

		switch {
		case len(cur) > 0:
			emit()
		case lastSep && !d.policy.DropTrailingEmpty:
			emit()
		}
	}
}

// Collect materializes all blocks
func (d *Document) Collect() []Block {
	var blocks []Block
	for _, b := range d.Blocks() {
		blocks = append(blocks, b)
	}
	return blocks
}
