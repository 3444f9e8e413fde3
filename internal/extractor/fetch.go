package extractor

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"
)

// Remote is an open HTTP response body for a media URL reported by the tool.
type Remote struct {
	io.ReadCloser
	ContentType string
	Size        int64
}

// Ext returns a file extension suitable for the content type, defaulting
// to jpg as the only remote fetches made are for images.
func (r *Remote) Ext() string {
	switch r.ContentType {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/heic":
		return "heic"
	case "video/mp4":
		return "mp4"
	}

	return "jpg"
}

// Fetch opens a direct media URL (typically an image URL returned in the
// info query) for streaming to a client.
func (ex *Extractor) Fetch(ctx context.Context, url string, platformName string) (remote *Remote, err error) {
	started := time.Now()
	defer func() { ex.observe(opFetch, platformName, started, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid media URL: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Grabber)")

	resp, err := ex.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch media: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch media: unexpected status %s", resp.Status)
	}

	contentType := "image/jpeg"
	if mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil && mediaType != "" {
		contentType = mediaType
	}

	return &Remote{ReadCloser: resp.Body, ContentType: contentType, Size: resp.ContentLength}, nil
}
