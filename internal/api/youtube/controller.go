package youtube

import (
	"context"
	"net/http"
	"strings"

	"github.com/hbomb79/Grabber/internal/api/apierror"
	"github.com/hbomb79/Grabber/internal/api/downloads"
	"github.com/hbomb79/Grabber/internal/api/util"
	"github.com/hbomb79/Grabber/internal/extractor"
	"github.com/hbomb79/Grabber/internal/platform"
	"github.com/labstack/echo/v4"
)

type (
	Extractor interface {
		Info(ctx context.Context, url string, opts extractor.QueryOptions) (*extractor.Metadata, error)
	}

	PlaylistEntry struct {
		Title     string  `json:"title"`
		URL       string  `json:"url"`
		Duration  float64 `json:"duration"`
		Uploader  string  `json:"uploader"`
		Thumbnail string  `json:"thumbnail"`
		ViewCount int64   `json:"view_count"`
	}

	PlaylistInfoResponse struct {
		PlaylistTitle string            `json:"playlist_title"`
		PlaylistCount int64             `json:"playlist_count"`
		Entries       []PlaylistEntry   `json:"entries"`
		Formats       []platform.Preset `json:"formats"`
	}

	// Controller adds the playlist endpoints on top of the standard
	// platform routes. Downloads of individual playlist entries are
	// handled by the standard download route.
	Controller struct {
		*downloads.Controller
		extractor     Extractor
		playlistLimit int
	}
)

const watchURLPrefix = "https://www.youtube.com/watch?v="

func New(base *downloads.Controller, ex Extractor, playlistLimit int) *Controller {
	return &Controller{Controller: base, extractor: ex, playlistLimit: playlistLimit}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	controller.Controller.SetRoutes(eg)
	eg.POST("/playlist/info", controller.playlistInfo)
}

// playlistInfo lists the entries of a playlist without resolving each of
// them, which would require one tool invocation per entry.
func (controller *Controller) playlistInfo(ec echo.Context) error {
	var request downloads.InfoRequest
	if err := ec.Bind(&request); err != nil {
		return apierror.BadRequest("Request body must be valid JSON")
	}

	url, err := controller.CheckURL(request.URL, "URL is required")
	if err != nil {
		return err
	}
	if !strings.Contains(url, "list=") {
		return apierror.BadRequest("Please provide a valid YouTube playlist URL")
	}

	meta, err := controller.extractor.Info(ec.Request().Context(), url, extractor.QueryOptions{
		Platform: controller.Platform().Name,
		Playlist: true,
		Limit:    controller.playlistLimit,
	})
	if err != nil {
		return controller.ToolFailure("Failed to get YouTube playlist information", err)
	}

	return ec.JSON(http.StatusOK, newPlaylistInfoResponse(controller.Platform(), meta))
}

func newPlaylistInfoResponse(p *platform.Platform, meta *extractor.Metadata) PlaylistInfoResponse {
	entries := util.ApplyConversion(meta.Entries, func(entry extractor.Metadata) PlaylistEntry {
		url := entry.URL
		if url == "" && entry.ID != "" {
			url = watchURLPrefix + entry.ID
		}

		return PlaylistEntry{
			Title:     p.TitleOrFallback(entry.Title),
			URL:       url,
			Duration:  entry.Duration,
			Uploader:  util.FirstNonEmpty(entry.Uploader, entry.Channel),
			Thumbnail: entry.BestThumbnail(),
			ViewCount: entry.ViewCount,
		}
	})

	count := meta.PlaylistCount
	if count == 0 {
		count = int64(len(entries))
	}

	return PlaylistInfoResponse{
		PlaylistTitle: util.FirstNonEmpty(meta.Title, "YouTube Playlist"),
		PlaylistCount: count,
		Entries:       entries,
		Formats:       p.Presets,
	}
}
