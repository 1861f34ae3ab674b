package ceph

import (
	"fmt"
	"strconv"
)

// DefaultTiBScale converts TiB figures to the base unit `ceph pg dump` uses
// for values printed without the TiB suffix.
const DefaultTiBScale = 1000

const unitTiB = "TiB"

// Units normalizes the mixed-unit capacity columns of the OSD section
type Units struct {
	TiBScale float64
}

// Normalize scales a value/unit pair to the base unit. Only TiB is scaled,
// every other unit is already in base unit.
func (u Units) Normalize(value, unit string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("bad capacity %q", value)
	}
	if unit == unitTiB {
		scale := u.TiBScale
		if scale == 0 {
			scale = DefaultTiBScale
		}
		return v * scale, nil
	}
	return v, nil
}
