package downloads

import (
	"github.com/hbomb79/Grabber/internal/api/util"
	"github.com/hbomb79/Grabber/internal/extractor"
	"github.com/hbomb79/Grabber/internal/platform"
)

const maxDescriptionLength = 200

type (
	InfoRequest struct {
		URL string `json:"url"`
	}

	DownloadRequest struct {
		URL      string `json:"url"`
		FormatID string `json:"format_id" validate:"omitempty,max=256,printascii"`

		// Title, when provided, is used for the filename instead of
		// querying the tool for it.
		Title string `json:"title" validate:"omitempty,max=1024"`
	}

	// InfoResponse is the result of the info endpoint for all platforms. The
	// view count and upload date are only present if the tool reports them.
	InfoResponse struct {
		Title       string            `json:"title"`
		Uploader    string            `json:"uploader"`
		Duration    float64           `json:"duration"`
		Thumbnail   string            `json:"thumbnail"`
		Description string            `json:"description"`
		ViewCount   int64             `json:"view_count,omitempty"`
		UploadDate  string            `json:"upload_date,omitempty"`
		Formats     []platform.Preset `json:"formats"`
	}
)

// NewInfoResponse builds the info response from the tool's metadata. The
// formats returned are always the platform's fixed presets, regardless of
// what the tool reported as available.
func NewInfoResponse(p *platform.Platform, meta *extractor.Metadata) InfoResponse {
	return InfoResponse{
		Title:       p.TitleOrFallback(meta.Title),
		Uploader:    util.FirstNonEmpty(meta.Uploader, meta.Channel),
		Duration:    meta.Duration,
		Thumbnail:   meta.BestThumbnail(),
		Description: Truncate(meta.Description, maxDescriptionLength),
		ViewCount:   meta.ViewCount,
		UploadDate:  meta.UploadDate,
		Formats:     p.Presets,
	}
}

// Truncate shortens s to at most max runes.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	return string(runes[:max])
}
