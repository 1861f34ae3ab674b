package lustre

import (
	"context"
	"errors"
	"fmt"
	"os"

	set "github.com/deckarep/golang-set"
	"github.com/sourcegraph/conc/pool"
)

// FilesPerOST counts, per OST index, the files with at least one object on it.
// Indexes outside [0, ostCount) are ignored.
func FilesPerOST(layouts []*StripeLayout, ostCount int) []int {
	counts := make([]int, ostCount)
	for _, l := range layouts {
		seen := set.NewThreadUnsafeSet()
		for _, obj := range l.Objects() {
			if obj.DeviceIndex < 0 || obj.DeviceIndex >= ostCount {
				continue
			}
			if seen.Add(obj.DeviceIndex) {
				counts[obj.DeviceIndex]++
			}
		}
	}
	return counts
}

// FilesOnOSTs returns the names of the files striped over any of osts
func FilesOnOSTs(layouts []*StripeLayout, osts ...int) []string {
	want := set.NewThreadUnsafeSet()
	for _, idx := range osts {
		want.Add(idx)
	}

	var names []string
	for _, l := range layouts {
		for _, obj := range l.Objects() {
			if want.Contains(obj.DeviceIndex) {
				names = append(names, l.Filename)
				break
			}
		}
	}
	return names
}

// LayoutError is the failure to capture or parse the layout of one path
type LayoutError struct {
	Path string
	Err  error
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("getstripe %s: %v", e.Path, e.Err)
}

func (e *LayoutError) Unwrap() error {
	return e.Err
}

// Layouts captures and parses the stripe layout of every path, at most
// concurrency at a time. The result is in path order. A path that fails is
// left out and its *LayoutError joined into the returned error, so a
// non-nil error still comes with every layout that did parse.
func Layouts(ctx context.Context, src Source, paths []string, concurrency int) ([]*StripeLayout, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	layouts := make([]*StripeLayout, len(paths))
	errs := make([]error, len(paths))

	p := pool.New().WithContext(ctx).WithMaxGoroutines(concurrency)
	for i, path := range paths {
		p.Go(func(ctx context.Context) error {
			bs, err := src.Getstripe(ctx, path)
			if err == nil {
				layouts[i], err = ParseStripe(string(bs))
			}
			if err != nil {
				errs[i] = &LayoutError{Path: path, Err: err}
			}
			return nil
		})
	}
	_ = p.Wait()

	ok := make([]*StripeLayout, 0, len(paths))
	for i, l := range layouts {
		if errs[i] == nil {
			ok = append(ok, l)
		}
	}
	return ok, errors.Join(errs...)
}

// FileSize is one row of the size table of an IO report
type FileSize struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// IOReport holds the layouts of the files a job reads and writes, plus their
// sizes to weigh the overlap of both groups per OST
type IOReport struct {
	Inputs  []*StripeLayout `json:"inputs"`
	Outputs []*StripeLayout `json:"outputs"`
	Sizes   []FileSize      `json:"sizes"`
}

// CollectIO gathers the stripe layouts of two file groups. Sizes lists the
// inputs first, then the outputs. Layout failures are returned together
// with the report, as with Layouts; a file that cannot be stat'ed fails
// the whole report.
func CollectIO(ctx context.Context, src Source, inputs, outputs []string, concurrency int) (*IOReport, error) {
	var (
		rep        IOReport
		layoutErrs []error
		err        error
	)
	if rep.Inputs, err = Layouts(ctx, src, inputs, concurrency); err != nil {
		layoutErrs = append(layoutErrs, fmt.Errorf("inputs: %w", err))
	}
	if rep.Outputs, err = Layouts(ctx, src, outputs, concurrency); err != nil {
		layoutErrs = append(layoutErrs, fmt.Errorf("outputs: %w", err))
	}

	for _, name := range append(append([]string{}, inputs...), outputs...) {
		fi, err := os.Stat(name)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		rep.Sizes = append(rep.Sizes, FileSize{Name: name, Size: fi.Size()})
	}
	return &rep, errors.Join(layoutErrs...)
}
