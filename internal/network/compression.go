// File: internal/network/compression.go
package network

import (
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// AcceptEncoding is the value sent by clients that decode bodies with
// DecompressBody.
const AcceptEncoding = "gzip, deflate, br"

// Pools for decompression readers to reduce allocation overhead.
var (
	gzipReaderPool = sync.Pool{
		New: func() interface{} { return new(gzip.Reader) },
	}
	brotliReaderPool = sync.Pool{
		New: func() interface{} { return brotli.NewReader(nil) },
	}
)

// Shared empty reader used for resetting pooled readers.
var emptyReader = strings.NewReader("")

// closeWrapper closes the decoding reader, returns it to its pool and closes
// the original body.
type closeWrapper struct {
	io.Reader
	release      func()
	originalBody io.ReadCloser
}

func (w *closeWrapper) Close() error {
	if w.release != nil {
		w.release()
		w.release = nil
	}
	return w.originalBody.Close()
}

// DecompressBody returns a reader that transparently decodes resp.Body
// according to its Content-Encoding. Closing the returned reader closes the
// original body. Unknown encodings are an error rather than silently saving
// compressed bytes to disk.
func DecompressBody(resp *http.Response) (io.ReadCloser, error) {
	if resp == nil || resp.Body == nil {
		return nil, fmt.Errorf("response has no body")
	}

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "", "identity":
		return resp.Body, nil
	case "gzip", "x-gzip":
		zr := gzipReaderPool.Get().(*gzip.Reader)
		if err := zr.Reset(resp.Body); err != nil {
			gzipReaderPool.Put(zr)
			return nil, fmt.Errorf("invalid gzip body: %w", err)
		}
		return &closeWrapper{
			Reader: zr,
			release: func() {
				_ = zr.Reset(emptyReader)
				gzipReaderPool.Put(zr)
			},
			originalBody: resp.Body,
		}, nil
	case "br":
		br := brotliReaderPool.Get().(*brotli.Reader)
		if err := br.Reset(resp.Body); err != nil {
			brotliReaderPool.Put(br)
			return nil, fmt.Errorf("invalid brotli body: %w", err)
		}
		return &closeWrapper{
			Reader: br,
			release: func() {
				_ = br.Reset(emptyReader)
				brotliReaderPool.Put(br)
			},
			originalBody: resp.Body,
		}, nil
	case "deflate":
		zr, err := zlib.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("invalid deflate body: %w", err)
		}
		return &closeWrapper{Reader: zr, release: func() { _ = zr.Close() }, originalBody: resp.Body}, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}
