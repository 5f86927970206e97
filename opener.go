package imf

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// Opener is the URL/IO abstraction the engine depends on but does not
// implement itself — out of scope per §1 ("the URL/IO abstraction that
// opens byte streams from local paths, relative paths, absolute paths
// (POSIX and Windows), UNC paths, and URLs"). It is used only to fetch the
// CPL and Asset Map documents; child track files are opened by the
// ChildDemuxer, which resolves its own URIs (go-astiav delegates that to
// libavformat's protocol handlers).
type Opener interface {
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}

// DefaultOpener is a minimal Opener covering local filesystem paths and
// http(s) URLs, sufficient for exercising the engine without a real IO
// abstraction plugged in. Production embedders are expected to supply their
// own Opener via WithOpener.
type DefaultOpener struct {
	Client *http.Client
}

func (o DefaultOpener) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, err
		}
		client := o.Client
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, &url.Error{Op: "GET", URL: uri, Err: io.ErrUnexpectedEOF}
		}
		return resp.Body, nil
	}
	path := uri
	if strings.HasPrefix(path, "file://") {
		u, err := url.Parse(path)
		if err != nil {
			return nil, err
		}
		path = u.Path
	}
	return os.Open(path)
}
