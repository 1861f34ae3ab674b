package ceph

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/LenBoer/distributed-storage-visualization/internal/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	dataOSDTree, _ = os.ReadFile("testdata/osd-tree.txt")
	dataPGDump, _  = os.ReadFile("testdata/pg-dump.txt")
)

func Test_testDataIsValid(t *testing.T) {
	for name, data := range map[string][]byte{
		"dataOSDTree": dataOSDTree,
		"dataPGDump":  dataPGDump,
	} {
		require.NotNil(t, data, name)
	}
}

func TestParseTree_SingleHost(t *testing.T) {
	text := "ID WEIGHT TYPE NAME\n-1 3.0 root default\n-2 1.5 host node1\n0 ssd 1.0 osd.0 up 1.0 1.0\n"

	tree, err := ParseTree(text, TreeOptions{})
	require.NoError(t, err)
	require.Len(t, tree.Nodes, 3)

	root := tree.Root()
	assert.True(t, root.IsRoot())
	assert.Equal(t, 3.0, root.Weight)
	assert.InDelta(t, 1.5, root.Residual, 1e-9)

	children := tree.Children(root.ID)
	require.Len(t, children, 1)
	host := children[0]
	assert.Equal(t, "host node1", host.Label())
	assert.Equal(t, KindBucket, host.Kind)
	assert.InDelta(t, 0.5, host.Residual, 1e-9)

	osd, ok := tree.Node("0")
	require.True(t, ok)
	assert.Equal(t, "osd.0", osd.Label())
	assert.Equal(t, "-2", osd.ParentID)
	assert.Equal(t, "ssd", osd.DeviceClass)
	assert.Equal(t, "up", osd.Status)
}

func TestParseTree_Fixture(t *testing.T) {
	tree, err := ParseTree(string(dataOSDTree), TreeOptions{})
	require.NoError(t, err)

	// rack-empty has zero weight and is skipped
	assert.Len(t, tree.Nodes, 11)
	_, ok := tree.Node("-9")
	assert.False(t, ok)

	parents := map[string]string{
		"-7":  "-1",
		"-3":  "-7",
		"0":   "-3",
		"1":   "-3",
		"-5":  "-7",
		"2":   "-5",
		"-8":  "-1",
		"-11": "-8",
		"3":   "-11",
		"4":   "-11",
	}
	for id, parent := range parents {
		n, ok := tree.Node(id)
		require.True(t, ok, id)
		assert.Equal(t, parent, n.ParentID, id)
	}

	assert.Len(t, tree.Leaves(), 5)
	down, _ := tree.Node("4")
	assert.Equal(t, "down", down.Status)
	assert.Equal(t, 0.0, down.Reweight)
}

func TestParseTree_WeightConservation(t *testing.T) {
	tree, err := ParseTree(string(dataOSDTree), TreeOptions{})
	require.NoError(t, err)

	roots := 0
	for _, n := range tree.Nodes {
		if n.IsRoot() {
			roots++
			continue
		}
		_, ok := tree.Node(n.ParentID)
		assert.True(t, ok, "parent of %s exists", n.ID)
	}
	assert.Equal(t, 1, roots)

	for _, n := range tree.Nodes {
		if n.Kind != KindBucket {
			continue
		}
		var sum float64
		for _, c := range tree.Children(n.ID) {
			sum += c.Weight
		}
		assert.LessOrEqual(t, sum, n.Weight+DefaultWeightEpsilon, n.ID)
		assert.InDelta(t, n.Weight-sum, n.Residual, 1e-9, n.ID)
	}
}

func TestParseTree_Errors(t *testing.T) {
	tests := map[string]struct {
		text    string
		wantErr error
	}{
		"bucket with three tokens": {
			text:    "ID WEIGHT TYPE NAME\n-1 3.0 root default\n-2 1.5 host\n",
			wantErr: report.ErrMalformedInput,
		},
		"leaf with six tokens": {
			text:    "ID WEIGHT TYPE NAME\n-1 3.0 root default\n0 1.0 osd.0 up 1.0 1.0\n",
			wantErr: report.ErrMalformedInput,
		},
		"root is a leaf": {
			text:    "ID WEIGHT TYPE NAME\n0 ssd 1.0 osd.0 up 1.0 1.0\n",
			wantErr: report.ErrMalformedInput,
		},
		"bad weight": {
			text:    "ID WEIGHT TYPE NAME\n-1 heavy root default\n",
			wantErr: report.ErrMalformedInput,
		},
		"children outweigh bucket": {
			text:    "ID WEIGHT TYPE NAME\n-1 1.0 root default\n-2 2.0 host node1\n",
			wantErr: ErrNegativeResidual,
		},
		"no open bucket left": {
			text:    "ID WEIGHT TYPE NAME\n-1 1.0 root default\n-2 1.0 host node1\n0 ssd 1.0 osd.0 up 1.0 1.0\n-3 0.5 host node2\n",
			wantErr: report.ErrMalformedInput,
		},
		"header only": {
			text:    "ID WEIGHT TYPE NAME\n",
			wantErr: report.ErrEmptyInput,
		},
		"empty": {
			text:    "",
			wantErr: report.ErrEmptyInput,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			tree, err := ParseTree(test.text, TreeOptions{})
			require.Error(t, err)
			assert.Nil(t, tree)
			assert.True(t, errors.Is(err, test.wantErr), "got %v", err)
		})
	}
}

func TestParseTree_Epsilon(t *testing.T) {
	// node1 keeps 0.3 unallocated: open under the default epsilon,
	// closed under a looser one
	text := "ID WEIGHT TYPE NAME\n" +
		"-1 3.0 root default\n" +
		"-2 1.3 host node1\n" +
		"0 ssd 1.0 osd.0 up 1.0 1.0\n" +
		"-3 0.3 host node2\n"

	tree, err := ParseTree(text, TreeOptions{})
	require.NoError(t, err)
	n, _ := tree.Node("-3")
	assert.Equal(t, "-2", n.ParentID)

	tree, err = ParseTree(text, TreeOptions{WeightEpsilon: 0.5})
	require.NoError(t, err)
	n, _ = tree.Node("-3")
	assert.Equal(t, "-1", n.ParentID)
}

func TestClassifyTreeLine(t *testing.T) {
	tests := map[string]struct {
		raw  string
		want treeLineKind
	}{
		"bucket":     {raw: "-1 0.05846 root default", want: treeLineBucket},
		"leaf":       {raw: "0 hdd 0.01949 osd.0 up 1.00000 1.00000", want: treeLineLeaf},
		"three cols": {raw: "-1 0.05846 root", want: treeLineInvalid},
		"five cols":  {raw: "0 hdd 0.01949 osd.0 up", want: treeLineInvalid},
		"eight cols": {raw: "0 hdd 0.01949 osd.0 up 1.00000 1.00000 x", want: treeLineInvalid},
		"blank":      {raw: "", want: treeLineInvalid},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			l := report.Line{Raw: test.raw, Tokens: strings.Fields(test.raw)}
			assert.Equal(t, test.want, classifyTreeLine(l))
		})
	}
}
