package db

import (
	"fmt"

	"github.com/LenBoer/distributed-storage-visualization/internal/ceph"
	"github.com/LenBoer/distributed-storage-visualization/internal/fsstat"
	"github.com/LenBoer/distributed-storage-visualization/internal/lustre"
)

// Records is a run together with what it stored. Only the fields its kind
// writes are set.
type Records struct {
	Run     *Run                   `json:"run"`
	Tree    *ceph.Tree             `json:"tree,omitempty"`
	PGDump  *ceph.PGDump           `json:"pg_dump,omitempty"`
	Usage   *lustre.Usage          `json:"usage,omitempty"`
	Layouts []*lustre.StripeLayout `json:"layouts,omitempty"`
	Files   []fsstat.FileStat      `json:"files,omitempty"`
}

// LoadRun reads a run back with the records of its kind
func (d *DB) LoadRun(id string) (*Records, error) {
	run, err := d.GetRun(id)
	if err != nil {
		return nil, err
	}

	rec := &Records{Run: run}
	switch run.Kind {
	case KindCephTree:
		rec.Tree, err = d.GetTree(id)
	case KindCephPGDump:
		rec.PGDump, err = d.GetPGDump(id)
	case KindLustreDF:
		rec.Usage, err = d.GetUsage(id)
	case KindLustreFile:
		rec.Layouts, err = d.GetLayouts(id)
	case KindWalk:
		rec.Files, err = d.GetFileStats(id)
	case KindCollect:
		if rec.Usage, err = d.GetUsage(id); err != nil {
			break
		}
		if rec.Files, err = d.GetFileStats(id); err != nil {
			break
		}
		rec.Layouts, err = d.GetLayouts(id)
	default:
		err = fmt.Errorf("unknown run kind %q", run.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	return rec, nil
}
