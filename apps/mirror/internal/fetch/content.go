package fetch

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tilsley/treemirror/pkg/api"
)

// Content is a downloaded file body ready to attach to a file node.
type Content struct {
	Content     string
	Encoding    api.Encoding
	ContentType *string
}

// FetchContent downloads url. Bodies served as image/* or
// application/octet-stream are base64-encoded; everything else is kept as
// text. The media type alone decides, so a text file served as octet-stream
// comes back base64-encoded.
//
// FetchContent never fails: any error is returned as a Content whose
// Encoding is api.EncodingError and whose Content is the error message.
func (f *Fetcher) FetchContent(ctx context.Context, url string) Content {
	ctx, span := otel.Tracer(instrName).Start(ctx, "fetch.FetchContent",
		trace.WithAttributes(attribute.String("http.url", url)),
	)
	defer span.End()

	c, err := f.download(ctx, url)
	if err != nil {
		f.log.Error("error fetching file", "url", url, "error", err)
		span.RecordError(err)
		return Content{Content: "Error: " + err.Error(), Encoding: api.EncodingError}
	}
	return c
}

func (f *Fetcher) download(ctx context.Context, url string) (Content, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return Content{}, fmt.Errorf("create request: %w", err)
	}
	if f.gh.UserAgent != "" {
		req.Header.Set("User-Agent", f.gh.UserAgent)
	}

	// The go-github client's http.Client carries the configured auth transport.
	resp, err := f.gh.Client().Do(req)
	if err != nil {
		f.observer.ObserveRequest("content", 0, err)
		return Content{}, fmt.Errorf("GET %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // non-actionable after reading

	f.observer.ObserveRequest("content", resp.StatusCode, nil)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Content{}, StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Content{}, fmt.Errorf("read %s: %w", url, err)
	}

	header := resp.Header.Get("Content-Type")
	var contentType *string
	if header != "" {
		contentType = &header
	}

	if isBinary(header) {
		return Content{
			Content:     base64.StdEncoding.EncodeToString(body),
			Encoding:    api.EncodingBase64,
			ContentType: contentType,
		}, nil
	}
	return Content{Content: string(body), Encoding: api.EncodingUTF8, ContentType: contentType}, nil
}

// isBinary classifies a Content-Type header value.
func isBinary(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, _, _ = strings.Cut(contentType, ";")
		mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	}
	return strings.HasPrefix(mediaType, "image/") || mediaType == "application/octet-stream"
}
