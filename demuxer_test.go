package imf

import (
	"context"
	"errors"
	"testing"

	"github.com/matryer/is"
)

const demuxerTestCPL = `<?xml version="1.0" encoding="UTF-8"?>
<CompositionPlaylist>
  <Id>urn:uuid:11111111-1111-1111-1111-111111111111</Id>
  <ContentTitle>Test</ContentTitle>
  <EditRate>24 1</EditRate>
  <SegmentList>
    <Segment>
      <SequenceList>
        <MainImageSequence>
          <TrackId>urn:uuid:22222222-2222-2222-2222-222222222222</TrackId>
          <ResourceList>
            <Resource>
              <EditRate>24 1</EditRate>
              <IntrinsicDuration>48</IntrinsicDuration>
              <TrackFileId>urn:uuid:33333333-3333-3333-3333-333333333333</TrackFileId>
            </Resource>
          </ResourceList>
        </MainImageSequence>
      </SequenceList>
    </Segment>
  </SegmentList>
</CompositionPlaylist>`

const demuxerTestAssetMap = `<?xml version="1.0" encoding="UTF-8"?>
<AssetMap>
  <AssetList>
    <Asset>
      <Id>urn:uuid:33333333-3333-3333-3333-333333333333</Id>
      <ChunkList><Chunk><Path>image.mxf</Path></Chunk></ChunkList>
    </Asset>
  </AssetList>
</AssetMap>`

func newTestOpener() fakeOpener {
	return fakeOpener{docs: map[string]string{
		"pkg/CPL.xml":      demuxerTestCPL,
		"pkg/ASSETMAP.xml": demuxerTestAssetMap,
	}}
}

func TestOpenReadPacketClose(t *testing.T) {
	is := is.New(t)

	factory := fakeFactoryFromURI(map[string]int{"pkg/image.mxf": 48})

	d, err := Open(context.Background(), "pkg/CPL.xml",
		WithOpener(newTestOpener()),
		WithChildDemuxerFactory(factory))
	is.NoErr(err)

	streams := d.Streams()
	is.Equal(len(streams), 1)

	count := 0
	for {
		pkt, err := d.ReadPacket(context.Background())
		if errors.Is(err, ErrEndOfStream) {
			break
		}
		is.NoErr(err)
		is.Equal(pkt.StreamIndex, 0)
		count++
	}
	is.Equal(count, 48)

	is.NoErr(d.Close())
}

func TestOpenFailsOnMissingAsset(t *testing.T) {
	is := is.New(t)

	cplMissingAsset := `<?xml version="1.0" encoding="UTF-8"?>
<CompositionPlaylist>
  <Id>urn:uuid:11111111-1111-1111-1111-111111111111</Id>
  <EditRate>24 1</EditRate>
  <SegmentList>
    <Segment><SequenceList>
      <MainImageSequence>
        <TrackId>urn:uuid:22222222-2222-2222-2222-222222222222</TrackId>
        <ResourceList><Resource>
          <EditRate>24 1</EditRate>
          <IntrinsicDuration>48</IntrinsicDuration>
          <TrackFileId>urn:uuid:99999999-9999-9999-9999-999999999999</TrackFileId>
        </Resource></ResourceList>
      </MainImageSequence>
    </SequenceList></Segment>
  </SegmentList>
</CompositionPlaylist>`

	opener := fakeOpener{docs: map[string]string{
		"pkg/CPL.xml":      cplMissingAsset,
		"pkg/ASSETMAP.xml": demuxerTestAssetMap,
	}}

	_, err := Open(context.Background(), "pkg/CPL.xml", WithOpener(opener))
	is.True(err != nil)
}

func TestInterruptSignalsEndOfStream(t *testing.T) {
	is := is.New(t)

	factory := fakeFactoryFromURI(map[string]int{"pkg/image.mxf": 48})
	interrupted := false

	d, err := Open(context.Background(), "pkg/CPL.xml",
		WithOpener(newTestOpener()),
		WithChildDemuxerFactory(factory),
		WithInterrupt(func() bool { return interrupted }))
	is.NoErr(err)

	interrupted = true
	_, err = d.ReadPacket(context.Background())
	is.True(errors.Is(err, ErrEndOfStream))

	is.NoErr(d.Close())
}
