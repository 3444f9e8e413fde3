package platform

var (
	YouTube = &Platform{
		Name:          "youtube",
		Label:         "YouTube",
		Domains:       []string{"youtube.com", "youtu.be"},
		FallbackTitle: "YouTube Video",
		Presets: []Preset{
			{FormatID: "bestvideo[height<=2160]+bestaudio/best[height<=2160]", Ext: "mp4", Quality: "2160p", FormatNote: "4K Ultra HD", Mode: ModeMerge},
			{FormatID: "best[height<=1440]", Ext: "mp4", Quality: "1440p", FormatNote: "2K Quad HD", Mode: ModeStream},
			{FormatID: "best[height<=1080]", Ext: "mp4", Quality: "1080p", FormatNote: "Full HD", Mode: ModeStream},
			{FormatID: "best[height<=720]", Ext: "mp4", Quality: "720p", FormatNote: "HD", Mode: ModeStream},
			{FormatID: "best[height<=480]", Ext: "mp4", Quality: "480p", FormatNote: "Standard quality", Mode: ModeStream},
			{FormatID: "best[height<=360]", Ext: "mp4", Quality: "360p", FormatNote: "Smaller file size", Mode: ModeStream},
			{FormatID: "bestaudio", Ext: "mp3", Quality: "Audio Only", FormatNote: "Audio Only (MP3)", Mode: ModeAudio},
		},
		Aliases: map[string]string{
			"/mp3":               "bestaudio",
			"/shorts":            "",
			"/playlist/download": "",
		},
	}

	Instagram = &Platform{
		Name:          "instagram",
		Label:         "Instagram",
		Domains:       []string{"instagram.com"},
		FallbackTitle: "Instagram Content",
		Presets: []Preset{
			{FormatID: "best", Ext: "mp4", Quality: "Best Quality", FormatNote: "Best available quality", Mode: ModeStream},
			{FormatID: "worst", Ext: "mp4", Quality: "Lower Quality", FormatNote: "Smaller file size", Mode: ModeStream},
		},
		Aliases: map[string]string{
			"/reel":       "",
			"/story":      "",
			"/highlights": "",
		},
	}

	Facebook = &Platform{
		Name:          "facebook",
		Label:         "Facebook",
		Domains:       []string{"facebook.com", "fb.watch"},
		FallbackTitle: "Facebook Content",
		Presets: []Preset{
			{FormatID: "best", Ext: "mp4", Quality: "Best Quality", FormatNote: "Best available quality", Mode: ModeStream},
			{FormatID: "worst", Ext: "mp4", Quality: "Lower Quality", FormatNote: "Smaller file size", Mode: ModeStream},
		},
		Aliases: map[string]string{
			"/reel":  "",
			"/video": "",
			"/watch": "",
		},
	}

	TikTok = &Platform{
		Name:          "tiktok",
		Label:         "TikTok",
		Domains:       []string{"tiktok.com"},
		FallbackTitle: "TikTok Content",
		Presets: []Preset{
			{FormatID: "best", Ext: "mp4", Quality: "Best Quality", FormatNote: "Best available quality", Mode: ModeStream},
			{FormatID: "worst", Ext: "mp4", Quality: "Lower Quality", FormatNote: "Smaller file size", Mode: ModeStream},
			{FormatID: "bestaudio", Ext: "mp3", Quality: "Audio Only", FormatNote: "Audio Only (MP3)", Mode: ModeAudio},
		},
		Aliases: map[string]string{
			"/short": "",
			"/long":  "",
			"/video": "",
			"/audio": "bestaudio",
		},
	}
)

// All returns every supported platform, in the order they are presented to users.
func All() []*Platform {
	return []*Platform{YouTube, Instagram, Facebook, TikTok}
}

// Lookup returns the platform with the given name, or nil if there is none.
func Lookup(name string) *Platform {
	for _, p := range All() {
		if p.Name == name {
			return p
		}
	}

	return nil
}
