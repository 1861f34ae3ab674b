package lustre

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/LenBoer/distributed-storage-visualization/internal/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	layouts map[string][]byte
	df      []byte
}

func (m *mockSource) Getstripe(_ context.Context, path string) ([]byte, error) {
	bs, ok := m.layouts[path]
	if !ok {
		return nil, errors.New("mock.Getstripe() error")
	}
	return bs, nil
}

func (m *mockSource) DF(context.Context) ([]byte, error) {
	return m.df, nil
}

func simpleLayout(name string, osts ...int) *StripeLayout {
	comp := Component{}
	for _, idx := range osts {
		comp.Objects = append(comp.Objects, StripeObject{DeviceIndex: idx, ObjectID: "1", Group: "0"})
	}
	return &StripeLayout{Filename: name, Components: []Component{comp}}
}

func TestFilesPerOST(t *testing.T) {
	pfl, err := ParseStripe(string(dataGetstripePFL))
	require.NoError(t, err)

	layouts := []*StripeLayout{
		simpleLayout("a", 0, 1),
		// two stripes on the same OST count once
		simpleLayout("b", 1, 1),
		simpleLayout("c", 7),
		pfl,
		{Error: "no layout"},
	}

	assert.Equal(t, []int{2, 3, 1, 0}, FilesPerOST(layouts, 4))
	assert.Empty(t, FilesPerOST(layouts, 0))
}

func TestFilesOnOSTs(t *testing.T) {
	layouts := []*StripeLayout{
		simpleLayout("a", 0, 1),
		simpleLayout("b", 2),
		simpleLayout("c", 1, 3),
	}

	assert.Equal(t, []string{"a", "c"}, FilesOnOSTs(layouts, 1))
	assert.Equal(t, []string{"b", "c"}, FilesOnOSTs(layouts, 2, 3))
	assert.Empty(t, FilesOnOSTs(layouts, 9))
}

func TestLayouts(t *testing.T) {
	src := &mockSource{layouts: map[string][]byte{
		"/lustre/plain": dataGetstripePlain,
		"/lustre/pfl":   dataGetstripePFL,
		"/lustre/pfl1":  []byte(singleComponentPFL),
		"/lustre/dir":   []byte("/lustre/dir\n"),
	}}

	layouts, err := Layouts(context.Background(), src, []string{"/lustre/pfl", "/lustre/dir", "/lustre/plain", "/lustre/pfl1"}, 2)
	require.NoError(t, err)
	require.Len(t, layouts, 4)

	assert.True(t, layouts[0].Progressive)
	assert.True(t, layouts[1].IsEmpty())
	assert.Equal(t, "/lustre/scratch/run01/output.dat", layouts[2].Filename)
	assert.True(t, layouts[3].Progressive)
}

func TestLayouts_KeepsParsedOnFailure(t *testing.T) {
	src := &mockSource{layouts: map[string][]byte{
		"/lustre/plain": dataGetstripePlain,
		"/lustre/bad":   []byte("/lustre/bad\nlmm_stripe_count: 1\nobdidx objid objid group\nX 1 0x1 0\n"),
		"/lustre/pfl":   dataGetstripePFL,
	}}
	paths := []string{"/lustre/plain", "/lustre/missing", "/lustre/bad", "/lustre/pfl"}

	layouts, err := Layouts(context.Background(), src, paths, 0)
	require.Error(t, err)
	require.Len(t, layouts, 2)
	assert.Equal(t, "/lustre/scratch/run01/output.dat", layouts[0].Filename)
	assert.Equal(t, "/lustre/scratch/run01/checkpoint.h5", layouts[1].Filename)

	assert.True(t, errors.Is(err, report.ErrMalformedInput))
	var layoutErr *LayoutError
	require.True(t, errors.As(err, &layoutErr))
	assert.Equal(t, "/lustre/missing", layoutErr.Path)
	assert.Contains(t, err.Error(), "getstripe /lustre/bad")
}

func TestCollectIO(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.dat")
	out := filepath.Join(dir, "out.dat")
	require.NoError(t, os.WriteFile(in, make([]byte, 10), 0o644))
	require.NoError(t, os.WriteFile(out, make([]byte, 25), 0o644))

	src := &mockSource{layouts: map[string][]byte{
		in:  []byte(in + "\nlmm_stripe_count: 1\nobdidx objid objid group\n0 100 0x64 0\n"),
		out: []byte(out + "\nlmm_stripe_count: 1\nobdidx objid objid group\n2 200 0xc8 0\n"),
	}}

	rep, err := CollectIO(context.Background(), src, []string{in}, []string{out}, 4)
	require.NoError(t, err)

	require.Len(t, rep.Inputs, 1)
	require.Len(t, rep.Outputs, 1)
	assert.Equal(t, 0, rep.Inputs[0].Objects()[0].DeviceIndex)
	assert.Equal(t, 2, rep.Outputs[0].Objects()[0].DeviceIndex)
	assert.Equal(t, []FileSize{{Name: in, Size: 10}, {Name: out, Size: 25}}, rep.Sizes)

	gone := filepath.Join(dir, "gone")
	_, err = CollectIO(context.Background(), src, []string{in}, []string{gone}, 4)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(gone, nil, 0o644))
	rep, err = CollectIO(context.Background(), src, []string{in}, []string{gone}, 4)
	require.Error(t, err)
	require.NotNil(t, rep)
	assert.Len(t, rep.Inputs, 1)
	assert.Empty(t, rep.Outputs)
	assert.Len(t, rep.Sizes, 2)
}
