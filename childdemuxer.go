package imf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/asticode/go-astiav"
)

// avTimeBase is libavutil's AV_TIME_BASE, the fixed 1/1,000,000s unit
// avformat_seek_file uses when addressed with stream_index -1.
const avTimeBase = 1000000

// StreamInfo is the probed description of a resource's first elementary
// stream, copied onto the outer virtual-track stream at Open (§4.7 "Stream
// publication at open").
type StreamInfo struct {
	TimeBase        Rational
	CodecParameters *astiav.CodecParameters
}

// childPacket is what a ChildDemuxer hands back before the composition
// engine rewrites its timestamps onto the virtual track's timeline.
type childPacket struct {
	StreamIndex int
	PTS         int64
	DTS         int64
	Duration    int64
	KeyFrame    bool
	Data        []byte
}

// ChildDemuxer is the pluggable abstraction over "the child demuxers (e.g.
// MXF) that decode individual track files" (§1, explicitly out of scope for
// this engine to implement). The engine only ever holds at most one open
// ChildDemuxer per virtual track (§5).
type ChildDemuxer interface {
	StreamInfo() StreamInfo
	ReadPacket(ctx context.Context) (*childPacket, error)
	Close() error
}

// ChildDemuxerFactory opens a child demuxing context for one resource:
// allocate, open on the resolved URI with format auto-detection, probe
// stream info, and (if entryPoint != 0) seek to the resource's entry point
// — the four steps of §4.5.
type ChildDemuxerFactory func(ctx context.Context, uri string, resource *TrackFileResource, logger *slog.Logger) (ChildDemuxer, error)

// OpenAstiavChildDemuxer is the default ChildDemuxerFactory, backed by
// libavformat via go-astiav — the Go analogue of the AVFormatContext the
// original C demuxer opens per resource in open_track_resource_context.
func OpenAstiavChildDemuxer(ctx context.Context, uri string, resource *TrackFileResource, logger *slog.Logger) (ChildDemuxer, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, newErr(KindOutOfMemory, "open child demuxer", uri, nil)
	}

	if err := fc.OpenInput(uri, nil, nil); err != nil {
		fc.Free()
		return nil, newErr(KindIOError, "open child demuxer", uri, err)
	}
	if err := fc.FindStreamInfo(nil); err != nil {
		fc.CloseInput()
		fc.Free()
		return nil, newErr(KindIOError, "probe child demuxer", uri, err)
	}

	streams := fc.Streams()
	if len(streams) == 0 {
		fc.CloseInput()
		fc.Free()
		return nil, invalidData("probe child demuxer", uri+": no streams", nil)
	}
	first := streams[0]
	tb := first.TimeBase()
	timeBase := NewRational(int64(tb.Num()), int64(tb.Den()))

	expectedTimeBase := resource.EditRate.Inv()
	if timeBase.Cmp(expectedTimeBase) != 0 && logger != nil {
		logger.Warn("child stream timebase disagrees with resource edit rate",
			slog.String("uri", uri),
			slog.String("stream_timebase", fmt.Sprintf("%d/%d", timeBase.Num, timeBase.Den)),
			slog.String("edit_rate", fmt.Sprintf("%d/%d", resource.EditRate.Num, resource.EditRate.Den)))
	}

	d := &astiavChildDemuxer{fc: fc, streamIndex: first.Index(), timeBase: timeBase, codecParameters: first.CodecParameters()}

	if resource.EntryPoint != 0 {
		entryTime := entryPointToAVTimeBase(resource)
		if err := fc.SeekFile(-1, entryTime, entryTime, entryTime, astiav.NewSeekFlags()); err != nil {
			fc.CloseInput()
			fc.Free()
			return nil, newErr(KindIOError, "seek child demuxer", uri, err)
		}
	}

	return d, nil
}

// entryPointToAVTimeBase rescales a resource's entry_point (a tick count
// at edit_rate) into AV_TIME_BASE units, for seeking with stream_index -1
// (all streams), per §4.5 step 5 and imfdec.c's open_track_resource_context
// (`entry_point * edit_rate.den * AV_TIME_BASE / edit_rate.num`).
func entryPointToAVTimeBase(resource *TrackFileResource) int64 {
	return int64(resource.EntryPoint) * resource.EditRate.Den * avTimeBase / resource.EditRate.Num
}

type astiavChildDemuxer struct {
	fc              *astiav.FormatContext
	streamIndex     int
	timeBase        Rational
	codecParameters *astiav.CodecParameters
}

func (d *astiavChildDemuxer) StreamInfo() StreamInfo {
	return StreamInfo{TimeBase: d.timeBase, CodecParameters: d.codecParameters}
}

func (d *astiavChildDemuxer) ReadPacket(ctx context.Context) (*childPacket, error) {
	pkt := astiav.AllocPacket()
	defer pkt.Free()

	if err := d.fc.ReadFrame(pkt); err != nil {
		if errors.Is(err, astiav.ErrEof) {
			return nil, io.EOF
		}
		return nil, newErr(KindIOError, "read child packet", "", err)
	}

	data := make([]byte, len(pkt.Data()))
	copy(data, pkt.Data())

	return &childPacket{
		StreamIndex: pkt.StreamIndex(),
		PTS:         pkt.Pts(),
		DTS:         pkt.Dts(),
		Duration:    pkt.Duration(),
		KeyFrame:    pkt.Flags().Has(astiav.PacketFlagKey),
		Data:        data,
	}, nil
}

func (d *astiavChildDemuxer) Close() error {
	d.fc.CloseInput()
	d.fc.Free()
	return nil
}
