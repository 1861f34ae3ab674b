// Package ceph normalizes the text dumps of a Ceph cluster: the CRUSH
// hierarchy printed by `ceph osd tree` and the placement report printed by
// `ceph pg dump`.
package ceph

// NodeKind tells buckets from leaf devices
type NodeKind string

const (
	KindBucket NodeKind = "bucket"
	KindLeaf   NodeKind = "leaf"
)

// Node is one entry of the CRUSH hierarchy
type Node struct {
	ID       string   `json:"id"`   // CRUSH id, negative for buckets
	Name     string   `json:"name"` // default, node1, osd.0
	Kind     NodeKind `json:"kind"`
	ParentID string   `json:"parent_id,omitempty"`
	Weight   float64  `json:"weight"`

	// Buckets
	BucketType string  `json:"bucket_type,omitempty"` // root, host, rack
	Residual   float64 `json:"residual,omitempty"`    // weight not claimed by children

	// Leaves
	DeviceClass     string  `json:"device_class,omitempty"`
	Status          string  `json:"status,omitempty"`
	Reweight        float64 `json:"reweight,omitempty"`
	PrimaryAffinity float64 `json:"primary_affinity,omitempty"`
}

// Label is the display name: "host node1" for buckets, "osd.0" for leaves
func (n Node) Label() string {
	if n.Kind == KindBucket {
		return n.BucketType + " " + n.Name
	}
	return n.Name
}

// IsRoot reports whether the node has no parent
func (n Node) IsRoot() bool { return n.ParentID == "" }

// PlacementGroup is one row of the PG section of `ceph pg dump`
type PlacementGroup struct {
	PGID      string `json:"pgid"`
	Pool      string `json:"pool"`
	PGNum     int    `json:"pg_num"`
	Objects   int64  `json:"objects"`
	Bytes     int64  `json:"bytes"`
	DiskLog   int64  `json:"disk_log"`
	State     string `json:"state"`
	Up        []int  `json:"up"`
	UpPrimary int    `json:"up_primary"`
}

// Pool is one row of the pool section of `ceph pg dump`
type Pool struct {
	ID        int   `json:"id"`
	Objects   int64 `json:"objects"`
	Bytes     int64 `json:"bytes"`
	OmapBytes int64 `json:"omap_bytes"`
	OmapKeys  int64 `json:"omap_keys"`
	Log       int64 `json:"log"`
	DiskLog   int64 `json:"disk_log"`
}

// Device is one row of the OSD section of `ceph pg dump`.
// Capacities are in the dump's base unit, see Units.
type Device struct {
	ID             int     `json:"id"`
	Used           float64 `json:"used"`
	Available      float64 `json:"available"`
	Total          float64 `json:"total"`
	HeartbeatPeers []int   `json:"hb_peers"`
	PGs            int     `json:"pg_sum"`
	PrimaryPGs     int     `json:"primary_pg_sum"`
}

// UsedRatio is Used/Total, 0 for a device without capacity
func (d Device) UsedRatio() float64 {
	if d.Total == 0 {
		return 0
	}
	return d.Used / d.Total
}

// PGDump holds the three record sets of a placement report
type PGDump struct {
	PlacementGroups []PlacementGroup `json:"placement_groups"`
	Pools           []Pool           `json:"pools"`
	Devices         []Device         `json:"devices"`
}
