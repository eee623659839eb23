package fetch

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
)

// acceptEncoding lists the encodings readBody can decode.
const acceptEncoding = "gzip, deflate, br"

// readBody decodes the response body according to Content-Encoding and
// returns at most limit decoded bytes. A longer body is truncated.
func readBody(resp *http.Response, limit int64) ([]byte, error) {
	r, err := decodingReader(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	body, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func decodingReader(encoding string, body io.Reader) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return io.NopCloser(body), nil
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		return gz, nil
	case "br":
		return io.NopCloser(brotli.NewReader(body)), nil
	case "deflate":
		return deflateReader(body)
	default:
		return nil, fmt.Errorf("%w: content encoding %q", ErrUnsupportedContent, encoding)
	}
}

// deflateReader accepts both zlib-wrapped and raw deflate streams; servers
// send either under the same name.
func deflateReader(body io.Reader) (io.ReadCloser, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read deflate body: %w", err)
	}
	if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
		return zr, nil
	}
	return flate.NewReader(bytes.NewReader(raw)), nil
}

// contentKind classifies a body as HTML, plain text or something else.
type contentKind int

const (
	contentOther contentKind = iota
	contentHTML
	contentText
)

func classify(contentType string, body []byte) contentKind {
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	switch {
	case mediaType == "text/html", mediaType == "application/xhtml+xml":
		return contentHTML
	case strings.HasPrefix(mediaType, "text/"):
		return contentText
	default:
		return contentOther
	}
}

// toUTF8 converts body to UTF-8 using the declared or sniffed charset.
func toUTF8(body []byte, contentType string) []byte {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body
	}
	converted, err := io.ReadAll(r)
	if err != nil {
		return body
	}
	return converted
}
