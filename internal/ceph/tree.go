package ceph

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/LenBoer/distributed-storage-visualization/internal/report"
)

const reportOSDTree = "osd-tree"

// DefaultWeightEpsilon is the residual weight under which a bucket is
// considered fully allocated to its children.
const DefaultWeightEpsilon = 0.1

// ErrNegativeResidual means children claimed more weight than their bucket
// declared. Parent inference is already wrong at that point.
var ErrNegativeResidual = fmt.Errorf("%w: negative residual weight", report.ErrMalformedInput)

// `ceph osd tree` columns. The dump has no labels per row, only position.
const (
	// ID WEIGHT TYPE NAME
	bucketColumns   = 4
	bucketColID     = 0
	bucketColWeight = 1
	bucketColType   = 2
	bucketColName   = 3

	// ID CLASS WEIGHT NAME STATUS REWEIGHT PRI-AFF
	leafColumns     = 7
	leafColID       = 0
	leafColClass    = 1
	leafColWeight   = 2
	leafColName     = 3
	leafColStatus   = 4
	leafColReweight = 5
	leafColPriAff   = 6

	treeHeaderLines = 1
)

type treeLineKind int

const (
	treeLineInvalid treeLineKind = iota
	treeLineBucket
	treeLineLeaf
)

func classifyTreeLine(l report.Line) treeLineKind {
	switch l.Len() {
	case bucketColumns:
		return treeLineBucket
	case leafColumns:
		return treeLineLeaf
	default:
		return treeLineInvalid
	}
}

// TreeOptions tunes hierarchy reconstruction
type TreeOptions struct {
	// WeightEpsilon defaults to DefaultWeightEpsilon
	WeightEpsilon float64
}

// Tree is the reconstructed CRUSH hierarchy, nodes in dump order
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Root returns the first node of the dump
func (t *Tree) Root() Node {
	return t.Nodes[0]
}

// Node finds a node by CRUSH id
func (t *Tree) Node(id string) (Node, bool) {
	for _, n := range t.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Children returns the direct children of id in dump order
func (t *Tree) Children(id string) []Node {
	var children []Node
	for _, n := range t.Nodes {
		if n.ParentID == id {
			children = append(children, n)
		}
	}
	return children
}

// Leaves returns all devices
func (t *Tree) Leaves() []Node {
	var leaves []Node
	for _, n := range t.Nodes {
		if n.Kind == KindLeaf {
			leaves = append(leaves, n)
		}
	}
	return leaves
}

type frameState int

const (
	frameBuilding frameState = iota
	frameClosed
)

// frame is a bucket that may still receive children
type frame struct {
	node     int // index into Tree.Nodes
	id       string
	residual float64
	state    frameState
}

// openBuckets is the path from the root to the current insertion point.
// A bucket stays open while it has unallocated weight.
type openBuckets struct {
	frames []*frame
	eps    float64
}

func (s *openBuckets) push(f *frame) {
	f.state = frameBuilding
	s.frames = append(s.frames, f)
}

func (s *openBuckets) top() *frame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// closeExhausted pops every bucket whose weight has been handed out
func (s *openBuckets) closeExhausted() {
	for f := s.top(); f != nil && f.residual < s.eps; f = s.top() {
		f.state = frameClosed
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// claim takes weight from the current bucket for a new child
func (s *openBuckets) claim(weight float64) (*frame, error) {
	f := s.top()
	if f == nil {
		return nil, errors.New("no open bucket left")
	}
	f.residual -= weight
	if f.residual < -s.eps {
		return nil, fmt.Errorf("%w: bucket %s at %.4f", ErrNegativeResidual, f.id, f.residual)
	}
	return f, nil
}

// ParseTree rebuilds the hierarchy from `ceph osd tree` plain output.
// The dump is a flattened depth-first walk carrying only weights, so the
// parent of every row is inferred from weight conservation.
func ParseTree(text string, opts TreeOptions) (*Tree, error) {
	eps := opts.WeightEpsilon
	if eps <= 0 {
		eps = DefaultWeightEpsilon
	}

	doc, err := report.Split(text, report.Policy{SkipLines: treeHeaderLines})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", reportOSDTree, err)
	}

	tree := &Tree{}
	stack := &openBuckets{eps: eps}

	for line := range doc.Lines() {
		if line.Len() == 0 {
			continue
		}

		kind := classifyTreeLine(line)
		if len(tree.Nodes) == 0 {
			if kind != treeLineBucket {
				return nil, report.Malformed(reportOSDTree, line, "root must be a bucket with %d columns", bucketColumns)
			}
			node, err := parseBucket(line)
			if err != nil {
				return nil, err
			}
			node.Residual = node.Weight
			tree.Nodes = append(tree.Nodes, node)
			stack.push(&frame{node: 0, id: node.ID, residual: node.Weight})
			continue
		}

		switch kind {
		case treeLineBucket:
			node, err := parseBucket(line)
			if err != nil {
				return nil, err
			}
			// emptied buckets were already accounted for elsewhere
			if node.Weight == 0 {
				continue
			}
			stack.closeExhausted()
			parent, err := stack.claim(node.Weight)
			if err != nil {
				return nil, wrapClaimErr(line, err)
			}
			tree.Nodes[parent.node].Residual = parent.residual

			node.ParentID = parent.id
			node.Residual = node.Weight
			tree.Nodes = append(tree.Nodes, node)
			stack.push(&frame{node: len(tree.Nodes) - 1, id: node.ID, residual: node.Weight})

		case treeLineLeaf:
			node, err := parseLeaf(line)
			if err != nil {
				return nil, err
			}
			parent, err := stack.claim(node.Weight)
			if err != nil {
				return nil, wrapClaimErr(line, err)
			}
			tree.Nodes[parent.node].Residual = parent.residual

			node.ParentID = parent.id
			tree.Nodes = append(tree.Nodes, node)

		default:
			return nil, report.Malformed(reportOSDTree, line,
				"want %d (bucket) or %d (leaf) columns, got %d", bucketColumns, leafColumns, line.Len())
		}
	}

	if len(tree.Nodes) == 0 {
		return nil, fmt.Errorf("%s: %w", reportOSDTree, report.ErrEmptyInput)
	}
	return tree, nil
}

func wrapClaimErr(line report.Line, err error) error {
	if errors.Is(err, ErrNegativeResidual) {
		return fmt.Errorf("%s line %d: %w", reportOSDTree, line.No, err)
	}
	return report.Malformed(reportOSDTree, line, "%v", err)
}

func parseBucket(line report.Line) (Node, error) {
	weight, err := strconv.ParseFloat(line.Token(bucketColWeight), 64)
	if err != nil {
		return Node{}, report.Malformed(reportOSDTree, line, "bad weight %q", line.Token(bucketColWeight))
	}
	return Node{
		ID:         line.Token(bucketColID),
		Name:       line.Token(bucketColName),
		Kind:       KindBucket,
		BucketType: line.Token(bucketColType),
		Weight:     weight,
	}, nil
}

func parseLeaf(line report.Line) (Node, error) {
	var vals [3]float64
	for i, col := range []int{leafColWeight, leafColReweight, leafColPriAff} {
		v, err := strconv.ParseFloat(line.Token(col), 64)
		if err != nil {
			return Node{}, report.Malformed(reportOSDTree, line, "bad number %q in column %d", line.Token(col), col)
		}
		vals[i] = v
	}
	return Node{
		ID:              line.Token(leafColID),
		Name:            line.Token(leafColName),
		Kind:            KindLeaf,
		DeviceClass:     line.Token(leafColClass),
		Weight:          vals[0],
		Status:          line.Token(leafColStatus),
		Reweight:        vals[1],
		PrimaryAffinity: vals[2],
	}, nil
}
