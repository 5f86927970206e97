package imf

import (
	"context"
	"log/slog"
)

// resourceHandle is a runtime resource playback handle: the resolved
// locator and CPL resource it plays, plus its at-most-one open child
// demuxer (§3 "Resource playback handle").
type resourceHandle struct {
	locator  *AssetLocator
	resource *TrackFileResource
	child    ChildDemuxer
}

// open lazily creates the handle's child demuxer if it is not already open.
func (h *resourceHandle) open(ctx context.Context, factory ChildDemuxerFactory, logger *slog.Logger) error {
	if h.child != nil {
		return nil
	}
	child, err := factory(ctx, h.locator.URI, h.resource, logger)
	if err != nil {
		return err
	}
	h.child = child
	return nil
}

func (h *resourceHandle) close() error {
	if h.child == nil {
		return nil
	}
	err := h.child.Close()
	h.child = nil
	return err
}

// trackPlayback is the runtime playback state of one virtual track (§3
// "Virtual track playback state").
type trackPlayback struct {
	index                int
	currentTimestamp     Timestamp
	duration             Timestamp
	resources            []*resourceHandle
	currentResourceIndex int
	lastPTS              int64
	lastDTS              int64
}

// newTrackPlayback expands a CPL virtual track's resources by their
// repeat_count into resource playback handles, accumulates the track's
// exact duration, resolves every referenced track file against locatorMap
// (failing fast on the first unresolved UUID, per the invariant in §3), and
// eagerly opens only the first resource — the remainder open lazily on
// first cursor entry (§9 Open Question (b)).
func newTrackPlayback(
	ctx context.Context,
	index int,
	vt *TrackFileVirtualTrack,
	locatorMap *AssetLocatorMap,
	factory ChildDemuxerFactory,
	logger *slog.Logger,
) (*trackPlayback, error) {
	t := &trackPlayback{index: index, duration: NewRational(0, 1)}

	for i := range vt.Resources {
		res := &vt.Resources[i]
		locator, err := locatorMap.Resolve(res.TrackFileUUID)
		if err != nil {
			return nil, err
		}

		editUnit := res.EditRate.Inv()
		resourceDuration := NewRational(int64(res.Duration)*int64(res.RepeatCount), 1).Mul(editUnit)
		t.duration = t.duration.Add(resourceDuration)

		for r := EditUnits(0); r < res.RepeatCount; r++ {
			t.resources = append(t.resources, &resourceHandle{locator: locator, resource: res})
		}
	}

	if len(t.resources) == 0 {
		return nil, invalidData("open virtual track", "no resources", nil)
	}

	if err := t.resources[0].open(ctx, factory, logger); err != nil {
		return nil, err
	}

	t.currentTimestamp = NewRational(0, t.duration.Den)
	return t, nil
}

// close releases every open child demuxer owned by the track, in whatever
// order they happen to be open (at most one, per §5).
func (t *trackPlayback) close() error {
	var firstErr error
	for _, h := range t.resources {
		if err := h.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
