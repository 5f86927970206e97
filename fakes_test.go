package imf

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// fakeChildDemuxer is a scripted ChildDemuxer used by engine and demuxer
// tests in place of the go-astiav-backed default, so they never touch
// real media files.
type fakeChildDemuxer struct {
	timeBase Rational
	packets  []childPacket
	pos      int
	closed   bool
}

func (f *fakeChildDemuxer) StreamInfo() StreamInfo {
	return StreamInfo{TimeBase: f.timeBase}
}

func (f *fakeChildDemuxer) ReadPacket(ctx context.Context) (*childPacket, error) {
	if f.pos >= len(f.packets) {
		return nil, io.EOF
	}
	p := f.packets[f.pos]
	f.pos++
	return &p, nil
}

func (f *fakeChildDemuxer) Close() error {
	f.closed = true
	return nil
}

// fakeFactoryFromURI builds a ChildDemuxerFactory backed by a fixed map of
// URI to the packets its child demuxer should emit, one DTS-incrementing
// frame per edit unit starting at the resource's entry point.
func fakeFactoryFromURI(frameCounts map[string]int) ChildDemuxerFactory {
	return func(ctx context.Context, uri string, resource *TrackFileResource, logger *slog.Logger) (ChildDemuxer, error) {
		n, ok := frameCounts[uri]
		if !ok {
			n = int(resource.Duration)
		}
		timeBase := resource.EditRate.Inv()
		packets := make([]childPacket, n)
		for i := 0; i < n; i++ {
			pos := int64(resource.EntryPoint) + int64(i)
			packets[i] = childPacket{
				StreamIndex: 0,
				PTS:         pos,
				DTS:         pos,
				Duration:    1,
				KeyFrame:    i == 0,
			}
		}
		return &fakeChildDemuxer{timeBase: timeBase, packets: packets}, nil
	}
}

// fakeOpener serves in-memory documents keyed by URL, for Demuxer tests
// that exercise Open without any real IO abstraction.
type fakeOpener struct {
	docs map[string]string
}

func (o fakeOpener) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	doc, ok := o.docs[uri]
	if !ok {
		return nil, ErrIOError
	}
	return io.NopCloser(strings.NewReader(doc)), nil
}
