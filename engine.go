package imf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// selectTrack returns the index of the track with the least current
// timestamp, ties broken by lower track index (§4.7 "Track selection",
// §9 Open Question (a): "best" is explicitly seeded with track 0 rather
// than left uninitialized).
func selectTrack(tracks []*trackPlayback) (int, error) {
	best := 0
	for i := 1; i < len(tracks); i++ {
		if tracks[i].currentTimestamp.Cmp(tracks[best].currentTimestamp) < 0 {
			best = i
		}
	}
	if tracks[best].currentTimestamp.Cmp(tracks[best].duration) == 0 {
		return best, ErrEndOfStream
	}
	return best, nil
}

// editUnit is the track's per-resource edit-unit duration, 1/edit_rate of
// the first resource, per §4.7 "Resource selection".
func (t *trackPlayback) editUnit() Rational {
	return t.resources[0].resource.EditRate.Inv()
}

// selectResource walks the track's resources accumulating cumulated
// duration and returns the index of the resource covering the track's
// current timestamp, or ErrEndOfStream / ErrStreamNotFound per §4.7.
func selectResource(t *trackPlayback) (int, error) {
	eu := t.editUnit()
	cumulated := NewRational(0, 1)

	for i, h := range t.resources {
		sourceDuration := NewRational(int64(h.resource.Duration), 1).Mul(eu)
		cumulated = cumulated.Add(sourceDuration)
		if t.currentTimestamp.Add(eu).Cmp(cumulated) <= 0 {
			return i, nil
		}
	}

	if t.duration.Cmp(t.currentTimestamp.Add(eu)) < 0 {
		return 0, ErrEndOfStream
	}
	return 0, ErrStreamNotFound
}

// crossBoundary closes the track's currently-open resource and opens the
// one at newIndex if it differs from the track's current cursor (§4.7
// "Boundary crossing").
func crossBoundary(ctx context.Context, t *trackPlayback, newIndex int, factory ChildDemuxerFactory, logger *slog.Logger) error {
	if newIndex == t.currentResourceIndex && t.resources[t.currentResourceIndex].child != nil {
		return nil
	}
	if err := t.resources[t.currentResourceIndex].close(); err != nil {
		return err
	}
	if err := t.resources[newIndex].open(ctx, factory, logger); err != nil {
		return err
	}
	t.currentResourceIndex = newIndex
	return nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// pumpTrack pulls one packet from the selected resource's child demuxer
// and rewrites its timestamps onto the track's monotonic timeline, per
// §4.7 "Packet pump". Child EndOfStream is translated to io.EOF so the
// caller can relocate to the next resource on its following call.
func pumpTrack(ctx context.Context, t *trackPlayback) (*Packet, error) {
	h := t.resources[t.currentResourceIndex]
	child := h.child
	info := child.StreamInfo()

	cp, err := child.ReadPacket(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("track %d: %w", t.index, err)
	}

	pts := t.lastPTS

	// §9 Open Question (c): the monotonic clamp is skipped on a track's
	// very first emitted packet, guarded by last_pts > 0 rather than >= 0.
	// Clamp first, then rebase to the resource's entry point.
	childDTS := cp.DTS
	if t.lastPTS > 0 {
		childDTS = max64(childDTS, t.lastDTS)
	}
	dts := childDTS - int64(h.resource.EntryPoint)

	pkt := &Packet{
		StreamIndex: t.index,
		PTS:         pts,
		DTS:         dts,
		Duration:    cp.Duration,
		KeyFrame:    cp.KeyFrame,
		Data:        cp.Data,
	}

	durationSeconds := NewRational(cp.Duration, 1).Mul(info.TimeBase)
	t.currentTimestamp = t.currentTimestamp.Add(durationSeconds)
	t.lastPTS += cp.Duration
	t.lastDTS = dts

	return pkt, nil
}

// advance drives one virtual track to its next emitted packet: select
// the covering resource, cross a boundary if needed, and pump. A child
// EndOfStream relocates directly to the next resource in sequence and
// retries exactly once, per §7's retry policy; any other child error
// propagates.
func advance(ctx context.Context, t *trackPlayback, factory ChildDemuxerFactory, logger *slog.Logger) (*Packet, error) {
	resourceIndex, err := selectResource(t)
	if err != nil {
		return nil, err
	}

	if err := crossBoundary(ctx, t, resourceIndex, factory, logger); err != nil {
		return nil, err
	}

	pkt, err := pumpTrack(ctx, t)
	if err == nil {
		return pkt, nil
	}
	if !errors.Is(err, io.EOF) {
		return nil, err
	}

	nextIndex := t.currentResourceIndex + 1
	if nextIndex >= len(t.resources) {
		return nil, ErrEndOfStream
	}
	if err := crossBoundary(ctx, t, nextIndex, factory, logger); err != nil {
		return nil, err
	}
	return pumpTrack(ctx, t)
}
