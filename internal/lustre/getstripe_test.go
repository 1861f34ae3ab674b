package lustre

import (
	"errors"
	"os"
	"testing"

	"github.com/LenBoer/distributed-storage-visualization/internal/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	dataGetstripePlain, _ = os.ReadFile("testdata/getstripe-plain.txt")
	dataGetstripePFL, _   = os.ReadFile("testdata/getstripe-pfl.txt")
	dataDF, _             = os.ReadFile("testdata/df.txt")
)

// a composite file with a single component prints no blank line
const singleComponentPFL = "/lustre/scratch/run01/small.h5\n" +
	"  lcm_layout_gen:    1\n" +
	"  lcm_mirror_count:  1\n" +
	"  lcm_entry_count:   1\n" +
	"    lcme_id:             1\n" +
	"    lcme_flags:          init\n" +
	"    lcme_extent.e_start: 0\n" +
	"    lcme_extent.e_end:   EOF\n" +
	"      lmm_stripe_count:  1\n" +
	"      lmm_objects:\n" +
	"      - 0: { l_ost_idx: 2, l_fid: [0x100020000:0x9:0x0] }\n"

func Test_testDataIsValid(t *testing.T) {
	for name, data := range map[string][]byte{
		"dataGetstripePlain": dataGetstripePlain,
		"dataGetstripePFL":   dataGetstripePFL,
		"dataDF":             dataDF,
	} {
		require.NotNil(t, data, name)
	}
}

func TestParseStripe_Simple(t *testing.T) {
	text := "/lustre/a\nlmm_stripe_count: 1\nlmm_stripe_size: 1048576\nobdidx objid objid group\n0 12345 0x0 67890\n"

	layout, err := ParseStripe(text)
	require.NoError(t, err)

	assert.False(t, layout.Progressive)
	assert.Equal(t, "/lustre/a", layout.Filename)
	require.Len(t, layout.Components, 1)
	assert.Equal(t, map[string]string{
		"lmm_stripe_count": "1",
		"lmm_stripe_size":  "1048576",
	}, layout.Components[0].Attributes)
	assert.Equal(t, []StripeObject{{DeviceIndex: 0, ObjectID: "12345", Group: "67890"}}, layout.Objects())
	assert.NoError(t, layout.Validate())
}

func TestParseStripe_BareSentinel(t *testing.T) {
	text := "/lustre/a\nlmm_stripe_count: 1\nlmm_stripe_size: 1048576\nlmm_objects:\n0 12345 0x0 67890\n"

	layout, err := ParseStripe(text)
	require.NoError(t, err)

	assert.False(t, layout.Progressive)
	assert.Equal(t, "/lustre/a", layout.Filename)
	require.Len(t, layout.Components, 1)
	assert.Len(t, layout.Components[0].Attributes, 2)
	assert.Equal(t, []StripeObject{{DeviceIndex: 0, ObjectID: "12345", Group: "67890"}}, layout.Objects())
}

func TestParseStripe_SingleComponent(t *testing.T) {
	layout, err := ParseStripe(singleComponentPFL)
	require.NoError(t, err)

	assert.True(t, layout.Progressive)
	assert.Equal(t, "/lustre/scratch/run01/small.h5", layout.Filename)
	require.NotNil(t, layout.ComponentCount)
	assert.Equal(t, 1, *layout.ComponentCount)
	require.Len(t, layout.Components, 1)
	assert.Equal(t, "EOF", layout.Components[0].Attributes["lcme_extent.e_end"])
	assert.Equal(t, []StripeObject{{DeviceIndex: 2, FileID: "0x100020000:0x9:0x0"}}, layout.Objects())
	assert.NoError(t, layout.Validate())
}

func TestParseStripe_PlainFixture(t *testing.T) {
	layout, err := ParseStripe(string(dataGetstripePlain))
	require.NoError(t, err)

	assert.Equal(t, "/lustre/scratch/run01/output.dat", layout.Filename)
	assert.Nil(t, layout.Generation)
	require.Len(t, layout.Components, 1)
	assert.Equal(t, "raid0", layout.Components[0].Attributes["lmm_pattern"])
	assert.Equal(t, []StripeObject{
		{DeviceIndex: 3, ObjectID: "132356", Group: "0"},
		{DeviceIndex: 1, ObjectID: "132229", Group: "0"},
	}, layout.Objects())
	assert.NoError(t, layout.Validate())
}

func TestParseStripe_ProgressiveFixture(t *testing.T) {
	layout, err := ParseStripe(string(dataGetstripePFL))
	require.NoError(t, err)

	assert.True(t, layout.Progressive)
	assert.Equal(t, "/lustre/scratch/run01/checkpoint.h5", layout.Filename)
	require.NotNil(t, layout.Generation)
	require.NotNil(t, layout.MirrorCount)
	require.NotNil(t, layout.ComponentCount)
	assert.Equal(t, 4, *layout.Generation)
	assert.Equal(t, 1, *layout.MirrorCount)
	assert.Equal(t, 3, *layout.ComponentCount)

	require.Len(t, layout.Components, 3)
	assert.Equal(t, "1", layout.Components[0].Attributes["lcme_id"])
	assert.Equal(t, "EOF", layout.Components[2].Attributes["lcme_extent.e_end"])
	// not instantiated yet
	assert.Empty(t, layout.Components[2].Objects)

	assert.Equal(t, []StripeObject{
		{DeviceIndex: 0, FileID: "0x100000000:0x2:0x0"},
		{DeviceIndex: 1, FileID: "0x100010000:0x3:0x0"},
		{DeviceIndex: 2, FileID: "0x100020000:0x3:0x0"},
	}, layout.Objects())
	assert.NoError(t, layout.Validate())
}

func TestParseStripe_NoLayout(t *testing.T) {
	tests := map[string]string{
		"empty":     "",
		"blank":     "\n\n",
		"name only": "/lustre/dir\n",
	}

	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			layout, err := ParseStripe(text)
			require.NoError(t, err)
			assert.True(t, layout.IsEmpty())
			assert.Equal(t, text, layout.Error)
			assert.Empty(t, layout.Objects())
		})
	}
}

func TestStripeLayout_FormatRoundTrip(t *testing.T) {
	tests := map[string]string{
		"plain":         string(dataGetstripePlain),
		"progressive":   string(dataGetstripePFL),
		"one component": singleComponentPFL,
		"scenario": "/lustre/a\nlmm_stripe_count: 1\nlmm_stripe_size: 1048576\n" +
			"obdidx objid objid group\n0 12345 0x0 67890\n",
	}

	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			first, err := ParseStripe(text)
			require.NoError(t, err)

			second, err := ParseStripe(first.Format())
			require.NoError(t, err)
			assert.Equal(t, first, second)

			// canonical text is a fixed point
			assert.Equal(t, first.Format(), second.Format())
		})
	}
}

func TestParseStripe_Malformed(t *testing.T) {
	tests := map[string]string{
		"plain bad obdidx": "/lustre/a\nlmm_stripe_count: 1\nobdidx objid objid group\nX 1 0x1 0\n",
		"plain short row":  "/lustre/a\nlmm_stripe_count: 1\nobdidx objid objid group\n0 1 0x1\n",
		"pfl short header": "/lustre/b\n  lcm_layout_gen: 1\n\n    lcme_id: 1\n",
		"pfl wrong header": "/lustre/b\n  lcm_layout_gen: 1\n  lcm_entry_count: 1\n  lcm_mirror_count: 1\n\n    lcme_id: 2\n",
		"pfl bad counter":  "/lustre/b\n  lcm_layout_gen: x\n  lcm_mirror_count: 1\n  lcm_entry_count: 2\n\n    lcme_id: 2\n",
		"pfl object before table": "/lustre/b\n  lcm_layout_gen: 1\n  lcm_mirror_count: 1\n  lcm_entry_count: 2\n" +
			"    lcme_id: 1\n      - 0: { l_ost_idx: 0, l_fid: [0x1:0x2:0x0] }\n\n    lcme_id: 2\n",
		"pfl bad ost index": "/lustre/b\n  lcm_layout_gen: 1\n  lcm_mirror_count: 1\n  lcm_entry_count: 2\n" +
			"    lcme_id: 1\n      lmm_objects:\n      - 0: { l_ost_idx: zero, l_fid: [0x1:0x2:0x0] }\n\n    lcme_id: 2\n",
		"plain second block": "/lustre/a\nlmm_stripe_count: 1\n\nlmm_stripe_size: 1\n",
		"pfl odd row": "/lustre/b\n  lcm_layout_gen: 1\n  lcm_mirror_count: 1\n  lcm_entry_count: 2\n" +
			"    lcme_id: 1\n      a b c\n\n    lcme_id: 2\n",
	}

	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			layout, err := ParseStripe(text)
			assert.Nil(t, layout)
			require.Error(t, err)
			assert.True(t, errors.Is(err, report.ErrMalformedInput))
		})
	}
}

func TestStripeLayout_Validate(t *testing.T) {
	tests := map[string]struct {
		layout  StripeLayout
		wantErr bool
	}{
		"simple ok": {
			layout: StripeLayout{Components: []Component{{Objects: []StripeObject{{ObjectID: "1", Group: "0"}}}}},
		},
		"simple with fid": {
			layout:  StripeLayout{Components: []Component{{Objects: []StripeObject{{ObjectID: "1", FileID: "0x1"}}}}},
			wantErr: true,
		},
		"simple with two components": {
			layout:  StripeLayout{Components: []Component{{}, {}}},
			wantErr: true,
		},
		"progressive ok": {
			layout: StripeLayout{Progressive: true, Components: []Component{{}, {Objects: []StripeObject{{FileID: "0x1"}}}}},
		},
		"progressive with objid": {
			layout:  StripeLayout{Progressive: true, Components: []Component{{Objects: []StripeObject{{FileID: "0x1", ObjectID: "2"}}}}},
			wantErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := test.layout.Validate()
			if test.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
