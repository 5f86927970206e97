package imf

import (
	"testing"

	"github.com/matryer/is"
)

// TestEntryPointToAVTimeBase pins concrete scenario §8.4
// (entry_point=120, edit_rate=24/1): the rescaled seek target must be
// the AV_TIME_BASE-units equivalent of tick 120 at 24/1, not entry_point
// scaled by edit_rate as if it were already in the stream's own
// timebase.
func TestEntryPointToAVTimeBase(t *testing.T) {
	is := is.New(t)

	resource := &TrackFileResource{
		BaseResource: BaseResource{EditRate: Rational{Num: 24, Den: 1}, EntryPoint: 120},
	}

	got := entryPointToAVTimeBase(resource)
	want := int64(120) * 1 * avTimeBase / 24
	is.Equal(got, want)
	is.Equal(got, int64(5000000))
}
