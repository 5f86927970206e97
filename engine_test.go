package imf

import (
	"context"
	"errors"
	"testing"

	"github.com/matryer/is"
)

func newFakeTrack(t *testing.T, index int, uri string, editRate Rational, duration EditUnits, frames int) *trackPlayback {
	t.Helper()
	fileID := trackFileUUID(t, "urn:uuid:30000000-0000-0000-0000-00000000000"+string(rune('0'+index)))
	locator := &AssetLocatorMap{}
	locator.Append([]AssetLocator{{UUID: fileID, URI: uri}})

	vt := &TrackFileVirtualTrack{
		ID: fileID,
		Resources: []TrackFileResource{
			{
				BaseResource:  BaseResource{EditRate: editRate, Duration: duration, RepeatCount: 1},
				TrackFileUUID: fileID,
			},
		},
	}

	factory := fakeFactoryFromURI(map[string]int{uri: frames})
	track, err := newTrackPlayback(context.Background(), index, vt, locator, factory, nil)
	if err != nil {
		t.Fatalf("newTrackPlayback: %v", err)
	}
	return track
}

func TestSelectTrackTieBreaksOnLowerIndex(t *testing.T) {
	is := is.New(t)

	a := newFakeTrack(t, 0, "a.mxf", Rational{Num: 24, Den: 1}, 48, 48)
	b := newFakeTrack(t, 1, "b.mxf", Rational{Num: 24, Den: 1}, 48, 48)

	idx, err := selectTrack([]*trackPlayback{a, b})
	is.NoErr(err)
	is.Equal(idx, 0)
}

func TestSelectTrackPrefersLeastTimestamp(t *testing.T) {
	is := is.New(t)

	a := newFakeTrack(t, 0, "a.mxf", Rational{Num: 24, Den: 1}, 48, 48)
	b := newFakeTrack(t, 1, "b.mxf", Rational{Num: 24, Den: 1}, 48, 48)
	a.currentTimestamp = NewRational(1, 24)

	idx, err := selectTrack([]*trackPlayback{a, b})
	is.NoErr(err)
	is.Equal(idx, 1)
}

func TestSelectTrackEndOfStreamWhenAllExhausted(t *testing.T) {
	is := is.New(t)

	a := newFakeTrack(t, 0, "a.mxf", Rational{Num: 24, Den: 1}, 48, 48)
	a.currentTimestamp = a.duration

	_, err := selectTrack([]*trackPlayback{a})
	is.True(errors.Is(err, ErrEndOfStream))
}

func TestSingleResourceImageTrackEmitsMonotonicPTS(t *testing.T) {
	is := is.New(t)

	track := newFakeTrack(t, 0, "image.mxf", Rational{Num: 24, Den: 1}, 48, 48)
	factory := fakeFactoryFromURI(map[string]int{"image.mxf": 48})

	var pts []int64
	for {
		pkt, err := advance(context.Background(), track, factory, nil)
		if errors.Is(err, ErrEndOfStream) {
			break
		}
		is.NoErr(err)
		is.Equal(pkt.StreamIndex, 0)
		pts = append(pts, pkt.PTS)
	}

	is.Equal(len(pts), 48)
	for i, p := range pts {
		is.Equal(p, int64(i))
	}
}

func TestResourceSelectionEndOfStreamAtFractionalRemainder(t *testing.T) {
	is := is.New(t)

	track := newFakeTrack(t, 0, "image.mxf", Rational{Num: 24, Den: 1}, 48, 48)
	// Half an edit unit (1/48s at 24/1) short of the declared end.
	track.currentTimestamp = track.duration.Add(NewRational(-1, 48))

	_, err := selectResource(track)
	is.True(errors.Is(err, ErrEndOfStream))
}

func TestAdvanceRelocatesOnChildEndOfStream(t *testing.T) {
	is := is.New(t)

	fileID := trackFileUUID(t, "urn:uuid:40000000-0000-0000-0000-000000000000")
	otherID := trackFileUUID(t, "urn:uuid:40000000-0000-0000-0000-000000000001")
	locator := &AssetLocatorMap{}
	locator.Append([]AssetLocator{
		{UUID: fileID, URI: "first.mxf"},
		{UUID: otherID, URI: "second.mxf"},
	})

	vt := &TrackFileVirtualTrack{
		ID: fileID,
		Resources: []TrackFileResource{
			{BaseResource: BaseResource{EditRate: Rational{Num: 24, Den: 1}, Duration: 24, RepeatCount: 1}, TrackFileUUID: fileID},
			{BaseResource: BaseResource{EditRate: Rational{Num: 24, Den: 1}, Duration: 24, RepeatCount: 1}, TrackFileUUID: otherID},
		},
	}

	// first.mxf holds one frame fewer than its resource declares, so its
	// child reaches end of stream while the cursor is still inside the first
	// resource and advance must relocate to second.mxf.
	factory := fakeFactoryFromURI(map[string]int{"first.mxf": 23, "second.mxf": 24})
	track, err := newTrackPlayback(context.Background(), 0, vt, locator, factory, nil)
	is.NoErr(err)

	var total int
	for {
		_, err := advance(context.Background(), track, factory, nil)
		if errors.Is(err, ErrEndOfStream) {
			break
		}
		is.NoErr(err)
		total++
	}
	is.Equal(total, 47)
	is.Equal(track.currentResourceIndex, 1)
}

// TestPumpTrackClampsBeforeRebasingEntryPoint pins §4.7's
// dts := max(child_dts, outer_stream.cur_dts) - entry_point order: the
// clamp against the track's previous dts must happen on the raw child
// dts, before the entry-point is subtracted, not after.
func TestPumpTrackClampsBeforeRebasingEntryPoint(t *testing.T) {
	is := is.New(t)

	resource := &TrackFileResource{
		BaseResource: BaseResource{
			EditRate:   Rational{Num: 24, Den: 1},
			EntryPoint: 120,
			Duration:   24,
		},
	}
	child := &fakeChildDemuxer{
		timeBase: Rational{Num: 1, Den: 24},
		packets:  []childPacket{{DTS: 120, PTS: 120, Duration: 1}},
	}
	handle := &resourceHandle{resource: resource, locator: &AssetLocator{URI: "entry.mxf"}, child: child}
	track := &trackPlayback{
		index:                0,
		duration:             NewRational(24, 24),
		resources:            []*resourceHandle{handle},
		currentResourceIndex: 0,
		lastPTS:              5,
		lastDTS:              24,
	}

	pkt, err := pumpTrack(context.Background(), track)
	is.NoErr(err)
	is.Equal(pkt.DTS, int64(0))
}
