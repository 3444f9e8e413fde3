// Package platform describes the social-media platforms Grabber can fetch
// from. Everything that differs between platforms (domains, quality presets,
// fallback names) lives here so the HTTP layer can use a single handler
// implementation for all of them.
package platform

import (
	"regexp"
	"strings"
)

type (
	// Mode controls how a preset is delivered to the client.
	Mode int

	// Preset is one entry in a platform's fixed list of quality options. The
	// FormatID is handed to the extraction tool verbatim as its format selector.
	Preset struct {
		FormatID   string `json:"format_id"`
		Ext        string `json:"ext"`
		Quality    string `json:"quality"`
		FormatNote string `json:"format_note"`
		Mode       Mode   `json:"-"`
	}

	// Platform holds the per-platform parameters used by the download routes.
	Platform struct {
		// Name is the lowercase identifier used in routes (/api/<name>/...)
		Name string

		// Label is the human readable name used in messages
		Label string

		// Domains is the set of substrings, one of which must be present in a
		// URL for it to be accepted for this platform.
		Domains []string

		// Presets is the ordered list of quality options returned by the info
		// endpoint.
		Presets []Preset

		// FallbackTitle is used when the tool does not report a title.
		FallbackTitle string

		// Aliases are additional download routes. The value, if not empty, is
		// a format ID which overrides the one supplied by the client.
		Aliases map[string]string
	}
)

const (
	// ModeStream pipes the tool's stdout directly to the client.
	ModeStream Mode = iota

	// ModeMerge requires the tool to fetch separate video and audio streams
	// and merge them in to a file on disk before it can be delivered.
	ModeMerge

	// ModeAudio requires the tool to extract and re-encode the audio track
	// to a file on disk before it can be delivered.
	ModeAudio
)

const (
	maxFilenameLength = 50
	defaultFormat     = "best"
)

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	controlWhitespace   = regexp.MustCompile(`[\t\n\f\r\v]`)
)

func (m Mode) String() string {
	switch m {
	case ModeStream:
		return "stream"
	case ModeMerge:
		return "merge"
	case ModeAudio:
		return "audio"
	}

	return "unknown"
}

// Staged returns true if the mode requires the output to be written to disk
// before being sent to the client.
func (m Mode) Staged() bool {
	return m == ModeMerge || m == ModeAudio
}

// IsAudio returns true if the preset produces an audio-only file.
func (p Preset) IsAudio() bool {
	return p.Mode == ModeAudio || p.Ext == "mp3" || p.Ext == "m4a"
}

// ContentType returns the HTTP content type used when streaming this preset.
func (p Preset) ContentType() string {
	if p.IsAudio() {
		return "audio/mpeg"
	}

	return "application/octet-stream"
}

// Matches returns true if the URL contains one of the platforms domains.
func (p *Platform) Matches(url string) bool {
	for _, domain := range p.Domains {
		if strings.Contains(url, domain) {
			return true
		}
	}

	return false
}

// DefaultPreset returns the preset used when no format is requested.
func (p *Platform) DefaultPreset() Preset {
	return p.Preset(defaultFormat)
}

// Preset finds the preset with the format ID given. Format IDs which are not part of
// the platforms preset list are passed through as-is; the delivery mode is
// inferred from the selector (a '+' joins separate streams, and so must be merged).
func (p *Platform) Preset(formatID string) Preset {
	formatID = strings.TrimSpace(formatID)
	if formatID == "" {
		return p.DefaultPreset()
	}

	for _, preset := range p.Presets {
		if preset.FormatID == formatID {
			return preset
		}
	}

	mode := ModeStream
	if strings.Contains(formatID, "+") {
		mode = ModeMerge
	}

	return Preset{FormatID: formatID, Ext: "mp4", Quality: formatID, Mode: mode}
}

// SafeFilename strips all characters which are not alphanumeric, whitespace, dashes
// or underscores from the title and truncates it to 50 characters. If nothing
// usable remains the platforms fallback title is used instead.
func (p *Platform) SafeFilename(title string) string {
	safe := unsafeFilenameChars.ReplaceAllString(title, "")
	safe = truncate(controlWhitespace.ReplaceAllString(safe, " "), maxFilenameLength)
	if strings.TrimSpace(safe) == "" {
		return strings.ReplaceAll(p.FallbackTitle, " ", "_")
	}

	return safe
}

// TitleOrFallback returns the title if it's not empty, else the fallback title
// for this platform.
func (p *Platform) TitleOrFallback(title string) string {
	if strings.TrimSpace(title) == "" {
		return p.FallbackTitle
	}

	return title
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	return string(runes[:max])
}
