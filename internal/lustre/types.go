// Package lustre normalizes Lustre client tool output: per-file stripe
// layouts from `lfs getstripe` and per-target usage from `lfs df`.
package lustre

import (
	"errors"
	"fmt"
)

// StripeLayout is the layout of one file. Simple (plain RAID0) layouts have a
// single component with ObjectID/Group objects, progressive (PFL) layouts have
// one component per extent with FileID objects.
type StripeLayout struct {
	Filename       string      `json:"filename"`
	Progressive    bool        `json:"progressive"`
	Generation     *int        `json:"lcm_layout_gen,omitempty"`
	MirrorCount    *int        `json:"lcm_mirror_count,omitempty"`
	ComponentCount *int        `json:"lcm_entry_count,omitempty"`
	Components     []Component `json:"components,omitempty"`

	// Error holds the raw tool output when no layout was reported,
	// e.g. for a file that is not striped.
	Error string `json:"error,omitempty"`
}

// Component is one layout component with its lmm_/lcme_ attributes
type Component struct {
	Attributes map[string]string `json:"attributes,omitempty"`
	Objects    []StripeObject    `json:"objects,omitempty"`
}

// StripeObject places a stripe on an OST index
type StripeObject struct {
	DeviceIndex int `json:"ost_idx"`

	// simple layouts
	ObjectID string `json:"objid,omitempty"`
	Group    string `json:"group,omitempty"`

	// progressive layouts
	FileID string `json:"fid,omitempty"`
}

// IsEmpty reports whether the tool printed no layout
func (l *StripeLayout) IsEmpty() bool {
	return l.Filename == "" && len(l.Components) == 0
}

// Objects returns the objects of all components in order
func (l *StripeLayout) Objects() []StripeObject {
	var objs []StripeObject
	for _, c := range l.Components {
		objs = append(objs, c.Objects...)
	}
	return objs
}

// Validate checks that every object has the shape of the layout kind
func (l *StripeLayout) Validate() error {
	if !l.Progressive && len(l.Components) > 1 {
		return errors.New("simple layout with more than one component")
	}
	for i, obj := range l.Objects() {
		simple := obj.ObjectID != "" || obj.Group != ""
		if l.Progressive && (simple || obj.FileID == "") {
			return fmt.Errorf("object %d: progressive layout wants a fid only", i)
		}
		if !l.Progressive && (obj.FileID != "" || !simple) {
			return fmt.Errorf("object %d: simple layout wants objid and group only", i)
		}
	}
	return nil
}

// StorageKind is the Lustre target type
type StorageKind string

const (
	KindMDT StorageKind = "MDT"
	KindOST StorageKind = "OST"
)

// UsageRow is one target line of `lfs df`
type UsageRow struct {
	ID         string      `json:"id"`
	Kind       StorageKind `json:"storage_type"`
	Blocks     int64       `json:"blocks"`
	Used       int64       `json:"used"`
	Available  int64       `json:"available"`
	UsePercent int         `json:"use_percent"`
	MountPoint string      `json:"mounted_on"`
	Partition  string      `json:"partition"`
}

// FilesystemSummary is the filesystem_summary line closing a filesystem
type FilesystemSummary struct {
	Name       string `json:"summary_name"`
	Blocks     int64  `json:"avg_blocks"`
	Used       int64  `json:"avg_used"`
	Available  int64  `json:"avg_available"`
	UsePercent int    `json:"avg_use_percent"`
}

// Usage holds both record sets of an `lfs df` report, in report order
type Usage struct {
	Rows      []UsageRow          `json:"rows"`
	Summaries []FilesystemSummary `json:"summaries"`
}

// OSTs returns the object storage target rows
func (u *Usage) OSTs() []UsageRow {
	var rows []UsageRow
	for _, r := range u.Rows {
		if r.Kind == KindOST {
			rows = append(rows, r)
		}
	}
	return rows
}
