package imf

import "log/slog"

// Option configures Open, mirroring the original's AVOption (assetmaps)
// plus the interrupt callback (§6 "Inputs"). There is no IO option
// dictionary: child demuxers are opened without any IO options.
type Option func(*openConfig)

type openConfig struct {
	assetMaps []string
	opener    Opener
	interrupt func() bool
	logger    *slog.Logger
	factory   ChildDemuxerFactory
}

func defaultOpenConfig() *openConfig {
	return &openConfig{
		opener:  DefaultOpener{},
		factory: OpenAstiavChildDemuxer,
	}
}

// WithAssetMaps supplies an explicit, ordered list of Asset Map
// paths/URLs. When omitted, the single path ASSETMAP.xml alongside the
// CPL is used (§6).
func WithAssetMaps(paths ...string) Option {
	return func(c *openConfig) { c.assetMaps = paths }
}

// WithOpener supplies the URL/IO abstraction used to fetch the CPL and
// Asset Map documents.
func WithOpener(o Opener) Option {
	return func(c *openConfig) { c.opener = o }
}

// WithInterrupt supplies a cooperative cancellation probe polled once at
// the start of every ReadPacket call (§5).
func WithInterrupt(probe func() bool) Option {
	return func(c *openConfig) { c.interrupt = probe }
}

// WithLogger supplies the structured logger passed to the child demuxer
// factory; the default factory uses it for the timebase-mismatch warning.
// Ignored sequence kinds and multi-chunk assets are not logged. A nil
// logger disables warning output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *openConfig) { c.logger = logger }
}

// WithChildDemuxerFactory overrides the default go-astiav-backed
// ChildDemuxer implementation, e.g. for tests.
func WithChildDemuxerFactory(factory ChildDemuxerFactory) Option {
	return func(c *openConfig) { c.factory = factory }
}
