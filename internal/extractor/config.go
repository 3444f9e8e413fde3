package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
)

type (
	// Config controls how the external extraction tool is located and invoked.
	Config struct {
		BinaryPath         string       `yaml:"binary_path" env:"YTDLP_BINARY_PATH" env-default:"yt-dlp"`
		FfprobeBinaryPath  string       `yaml:"ffprobe_binary_path" env:"FFPROBE_BINARY_PATH"`
		StagingDir         string       `yaml:"staging_dir" env:"STAGING_DIR"`
		InfoTimeoutSeconds int          `yaml:"info_timeout_seconds" env:"INFO_TIMEOUT_SECONDS" env-default:"90"`
		Cookies            CookieConfig `yaml:"cookies"`
	}

	// CookieConfig holds an optional Netscape-format cookie file for each
	// platform. Instagram stories and highlights will generally fail without one.
	CookieConfig struct {
		YouTube   string `yaml:"youtube" env:"YOUTUBE_COOKIES"`
		Instagram string `yaml:"instagram" env:"INSTAGRAM_COOKIES"`
		Facebook  string `yaml:"facebook" env:"FACEBOOK_COOKIES"`
		TikTok    string `yaml:"tiktok" env:"TIKTOK_COOKIES"`
	}
)

// For returns the cookie file configured for the named platform, or an
// empty string if there is none.
func (c CookieConfig) For(platform string) string {
	switch platform {
	case "youtube":
		return c.YouTube
	case "instagram":
		return c.Instagram
	case "facebook":
		return c.Facebook
	case "tiktok":
		return c.TikTok
	}

	return ""
}

// InfoTimeout is the deadline applied to metadata queries. A non-positive
// value disables the deadline entirely.
func (c Config) InfoTimeout() time.Duration {
	if c.InfoTimeoutSeconds <= 0 {
		return 0
	}

	return time.Duration(c.InfoTimeoutSeconds) * time.Second
}

// resolve expands any '~' prefixed paths and fills in the staging directory
// if one was not configured.
func (c Config) resolve() (Config, error) {
	var err error
	expand := func(p *string) {
		if err != nil || *p == "" {
			return
		}
		*p, err = homedir.Expand(*p)
	}

	expand(&c.BinaryPath)
	expand(&c.FfprobeBinaryPath)
	expand(&c.StagingDir)
	expand(&c.Cookies.YouTube)
	expand(&c.Cookies.Instagram)
	expand(&c.Cookies.Facebook)
	expand(&c.Cookies.TikTok)
	if err != nil {
		return c, fmt.Errorf("failed to expand configured path: %w", err)
	}

	if c.StagingDir == "" {
		c.StagingDir = filepath.Join(os.TempDir(), "grabber")
	}
	if err := os.MkdirAll(c.StagingDir, os.ModePerm); err != nil {
		return c, fmt.Errorf("failed to create staging directory %s: %w", c.StagingDir, err)
	}

	return c, nil
}
