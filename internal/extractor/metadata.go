package extractor

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

type (
	// Metadata is the subset of yt-dlp's info JSON that Grabber makes use of. The
	// same structure describes single videos, playlists (Entries) and profile
	// pages (ChannelFollowerCount, PlaylistCount).
	Metadata struct {
		ID                   string      `json:"id"`
		Type                 string      `json:"_type"`
		Title                string      `json:"title"`
		Uploader             string      `json:"uploader"`
		UploaderID           string      `json:"uploader_id"`
		Channel              string      `json:"channel"`
		Description          string      `json:"description"`
		Duration             float64     `json:"duration"`
		ViewCount            int64       `json:"view_count"`
		UploadDate           string      `json:"upload_date"`
		Thumbnail            string      `json:"thumbnail"`
		Thumbnails           []Thumbnail `json:"thumbnails"`
		WebpageURL           string      `json:"webpage_url"`
		URL                  string      `json:"url"`
		Extractor            string      `json:"extractor"`
		Ext                  string      `json:"ext"`
		ChannelFollowerCount int64       `json:"channel_follower_count"`
		PlaylistCount        int64       `json:"playlist_count"`
		Formats              []Format    `json:"formats"`
		Entries              []Metadata  `json:"entries"`
	}

	Thumbnail struct {
		URL        string `json:"url"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		Preference int    `json:"preference"`
	}

	Format struct {
		FormatID   string  `json:"format_id"`
		FormatNote string  `json:"format_note"`
		Ext        string  `json:"ext"`
		URL        string  `json:"url"`
		Width      int     `json:"width"`
		Height     int     `json:"height"`
		VideoCodec string  `json:"vcodec"`
		AudioCodec string  `json:"acodec"`
		Filesize   int64   `json:"filesize"`
		Tbr        float64 `json:"tbr"`
	}
)

// BestThumbnail returns the URL of the most suitable thumbnail. The
// top-level thumbnail is preferred when the tool reports one. Otherwise the
// last entry of the thumbnails list with a URL is used, as yt-dlp orders
// that list from worst to best.
func (m *Metadata) BestThumbnail() string {
	if m.Thumbnail != "" {
		return m.Thumbnail
	}

	for i := len(m.Thumbnails) - 1; i >= 0; i-- {
		if m.Thumbnails[i].URL != "" {
			return m.Thumbnails[i].URL
		}
	}

	return ""
}

// ImageURL returns the URL of the image for image-only posts. These have no
// formats with a video codec, and the media URL is either the top-level URL
// or the best thumbnail.
func (m *Metadata) ImageURL() string {
	for i := len(m.Formats) - 1; i >= 0; i-- {
		f := m.Formats[i]
		if f.URL != "" && isImageExt(f.Ext) {
			return f.URL
		}
	}
	if m.URL != "" && isImageExt(m.Ext) {
		return m.URL
	}

	return m.BestThumbnail()
}

func isImageExt(ext string) bool {
	switch ext {
	case "jpg", "jpeg", "png", "webp", "heic":
		return true
	}

	return false
}

// decodeMetadata parses the info JSON printed by the tool. Numeric fields are
// frequently reported as floats, ints or null depending on the extractor, so
// the document is first decoded generically and then weakly decoded in to
// the Metadata struct.
func decodeMetadata(raw []byte) (*Metadata, error) {
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("failed to parse info JSON: %w", err)
	}

	var meta Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &meta,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(generic); err != nil {
		return nil, fmt.Errorf("failed to decode info JSON: %w", err)
	}

	return &meta, nil
}
