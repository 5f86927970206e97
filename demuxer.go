package imf

import "context"

// Demuxer is the lifecycle façade over the virtual-track playback engine
// (§6 "Outer format surface"): open(url) → streams, read → packet,
// close → releases all child demuxers and frees the CPL and Asset Map.
type Demuxer struct {
	cpl      *CPL
	locators *AssetLocatorMap
	tracks   []*trackPlayback
	streams  []StreamInfo
	cfg      *openConfig
}

// Streams returns one StreamInfo per virtual track, in publication order:
// image first (if present), then audio tracks in CPL order (§4.7 "Stream
// publication at open").
func (d *Demuxer) Streams() []StreamInfo {
	return d.streams
}

// Open parses the CPL at url plus its Asset Map(s), resolves every
// referenced track file, and opens the first resource of every virtual
// track (§6). Any failure releases all partially constructed state before
// returning.
func Open(ctx context.Context, url string, opts ...Option) (*Demuxer, error) {
	cfg := defaultOpenConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	d := &Demuxer{cfg: cfg}

	cplBody, err := cfg.opener.Open(ctx, url)
	if err != nil {
		return nil, newErr(KindIOError, "open CPL", url, err)
	}
	cpl, err := ParseCPL(cplBody)
	cplBody.Close()
	if err != nil {
		return nil, err
	}
	d.cpl = cpl

	assetMapURLs := cfg.assetMaps
	if len(assetMapURLs) == 0 {
		assetMapURLs = []string{appendPathComponent(dirName(url), "ASSETMAP.xml")}
	}

	d.locators = &AssetLocatorMap{}
	for _, amURL := range assetMapURLs {
		if err := d.loadAssetMap(ctx, amURL); err != nil {
			d.Close()
			return nil, err
		}
	}

	if err := d.openTracks(ctx); err != nil {
		d.Close()
		return nil, err
	}

	return d, nil
}

func (d *Demuxer) loadAssetMap(ctx context.Context, amURL string) error {
	body, err := d.cfg.opener.Open(ctx, amURL)
	if err != nil {
		return newErr(KindIOError, "open asset map", amURL, err)
	}
	defer body.Close()

	locators, err := ParseAssetMap(body, amURL)
	if err != nil {
		return err
	}
	d.locators.Append(locators)
	return nil
}

// openTracks builds one trackPlayback per main image/audio virtual track,
// in publication order, and copies each track's first child stream info
// to the published outer stream.
func (d *Demuxer) openTracks(ctx context.Context) error {
	var virtualTracks []*TrackFileVirtualTrack
	if d.cpl.MainImage2D != nil {
		virtualTracks = append(virtualTracks, d.cpl.MainImage2D)
	}
	virtualTracks = append(virtualTracks, d.cpl.MainAudio...)

	for i, vt := range virtualTracks {
		track, err := newTrackPlayback(ctx, i, vt, d.locators, d.cfg.factory, d.cfg.logger)
		if err != nil {
			return err
		}
		d.tracks = append(d.tracks, track)

		child := track.resources[0].child
		info := child.StreamInfo()
		d.streams = append(d.streams, info)
	}

	if len(d.tracks) == 0 {
		return invalidData("open", "no main image or audio virtual tracks", nil)
	}
	return nil
}

// ReadPacket returns the next packet across all tracks, selecting the
// track with least current timestamp at each call (§4.7). Returns
// ErrEndOfStream once the selected (least-timestamp) track has reached its
// declared end, or when the caller's interrupt probe fires. When tracks
// declare different durations, reading therefore stops at the end of the
// shortest one; the remainder of longer tracks is not emitted.
func (d *Demuxer) ReadPacket(ctx context.Context) (*Packet, error) {
	if d.cfg.interrupt != nil && d.cfg.interrupt() {
		return nil, ErrEndOfStream
	}

	trackIndex, err := selectTrack(d.tracks)
	if err != nil {
		return nil, err
	}

	return advance(ctx, d.tracks[trackIndex], d.cfg.factory, d.cfg.logger)
}

// Close releases all owned state in the reverse of allocation order:
// tracks, then the Asset Map and CPL (§6).
func (d *Demuxer) Close() error {
	var firstErr error
	for _, t := range d.tracks {
		if t == nil {
			continue
		}
		if err := t.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.tracks = nil
	d.locators = nil
	d.cpl = nil
	return firstErr
}
