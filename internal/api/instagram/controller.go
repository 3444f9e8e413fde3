package instagram

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/hbomb79/Grabber/internal/api/apierror"
	"github.com/hbomb79/Grabber/internal/api/downloads"
	"github.com/hbomb79/Grabber/internal/api/util"
	"github.com/hbomb79/Grabber/internal/extractor"
	"github.com/hbomb79/Grabber/pkg/logger"
	"github.com/labstack/echo/v4"
)

type (
	Extractor interface {
		Info(ctx context.Context, url string, opts extractor.QueryOptions) (*extractor.Metadata, error)
		Fetch(ctx context.Context, url string, platform string) (*extractor.Remote, error)
	}

	UsernameRequest struct {
		Username string `json:"username"`
	}

	// ProfileInfoResponse is a best-effort description of a profile; the
	// tool only reports some of these fields for some accounts.
	ProfileInfoResponse struct {
		Username  string `json:"username"`
		FullName  string `json:"full_name,omitempty"`
		Biography string `json:"biography,omitempty"`
		Followers *int64 `json:"followers,omitempty"`
		Posts     *int64 `json:"posts,omitempty"`
		Thumbnail string `json:"thumbnail,omitempty"`
	}

	// Controller adds image and profile endpoints on top of the standard
	// platform routes (which already include /story and /highlights).
	Controller struct {
		*downloads.Controller
		extractor Extractor
	}
)

const profileURLPrefix = "https://www.instagram.com/"

var (
	log = logger.Get("InstagramController")

	validUsername       = regexp.MustCompile(`^[A-Za-z0-9._]{1,30}$`)
	errNoProfilePicture = errors.New("profile picture not reported")
	errNoImage          = errors.New("image URL not reported")
)

func New(base *downloads.Controller, ex Extractor) *Controller {
	return &Controller{Controller: base, extractor: ex}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	controller.Controller.SetRoutes(eg)
	eg.POST("/photo", controller.photo)
	eg.POST("/profile/info", controller.profileInfo)
	eg.POST("/profile", controller.profilePhoto)
}

// photo downloads the image from an image post. The tool cannot write
// images to stdout, so the image URL it reports is fetched directly.
func (controller *Controller) photo(ec echo.Context) error {
	var request downloads.DownloadRequest
	if err := ec.Bind(&request); err != nil {
		return apierror.BadRequest("Request body must be valid JSON")
	}

	url, err := controller.CheckURL(request.URL, "Instagram URL is required")
	if err != nil {
		return err
	}

	ctx := ec.Request().Context()
	meta, err := controller.extractor.Info(ctx, url, extractor.QueryOptions{Platform: controller.Platform().Name})
	if err != nil {
		return controller.ToolFailure(controller.DownloadFailedMessage(), err)
	}

	imageURL := meta.ImageURL()
	if imageURL == "" {
		return controller.ToolFailure(controller.DownloadFailedMessage(), errNoImage)
	}

	filename := controller.Platform().SafeFilename(meta.Title)
	return controller.sendRemote(ec, imageURL, filename)
}

func (controller *Controller) profileInfo(ec echo.Context) error {
	username, err := bindUsername(ec)
	if err != nil {
		return err
	}

	meta, err := controller.queryProfile(ec.Request().Context(), username)
	if err != nil {
		return controller.ToolFailure("Failed to get Instagram profile information", err)
	}

	return ec.JSON(http.StatusOK, newProfileInfoResponse(username, meta))
}

func (controller *Controller) profilePhoto(ec echo.Context) error {
	username, err := bindUsername(ec)
	if err != nil {
		return err
	}

	meta, err := controller.queryProfile(ec.Request().Context(), username)
	if err != nil {
		return controller.ToolFailure("Failed to download Instagram profile photo", err)
	}

	thumbnail := meta.BestThumbnail()
	if thumbnail == "" {
		return controller.ToolFailure("Failed to download Instagram profile photo", errNoProfilePicture)
	}

	return controller.sendRemote(ec, thumbnail, username+"_profile_photo")
}

func (controller *Controller) queryProfile(ctx context.Context, username string) (*extractor.Metadata, error) {
	return controller.extractor.Info(ctx, profileURLPrefix+username+"/", extractor.QueryOptions{
		Platform: controller.Platform().Name,
		Playlist: true,
		Limit:    1,
	})
}

func (controller *Controller) sendRemote(ec echo.Context, url string, basename string) error {
	remote, err := controller.extractor.Fetch(ec.Request().Context(), url, controller.Platform().Name)
	if err != nil {
		return controller.ToolFailure(controller.DownloadFailedMessage(), err)
	}
	defer remote.Close()

	if _, err := controller.WriteAttachment(ec, remote, remote.ContentType, basename+"."+remote.Ext(), remote.Size); err != nil {
		log.Errorf("Image download of %s truncated: %v\n", url, err)
	}

	return nil
}

func bindUsername(ec echo.Context) (string, error) {
	var request UsernameRequest
	if err := ec.Bind(&request); err != nil {
		return "", apierror.BadRequest("Request body must be valid JSON")
	}

	username := NormalizeUsername(request.Username)
	if username == "" {
		return "", apierror.BadRequest("Username is required")
	}
	if !validUsername.MatchString(username) {
		return "", apierror.BadRequest("Please provide a valid Instagram username")
	}

	return username, nil
}

// NormalizeUsername accepts a bare username, an '@' prefixed handle or a
// profile URL and returns the bare username.
func NormalizeUsername(raw string) string {
	username := strings.TrimSpace(raw)
	if idx := strings.Index(username, "instagram.com/"); idx >= 0 {
		username = username[idx+len("instagram.com/"):]
		if end := strings.IndexAny(username, "/?#"); end >= 0 {
			username = username[:end]
		}
	}

	return strings.TrimPrefix(username, "@")
}

func newProfileInfoResponse(username string, meta *extractor.Metadata) ProfileInfoResponse {
	resp := ProfileInfoResponse{
		Username:  username,
		FullName:  util.FirstNonEmpty(meta.Uploader, meta.Channel, meta.Title),
		Biography: meta.Description,
		Thumbnail: meta.BestThumbnail(),
	}
	if meta.ChannelFollowerCount > 0 {
		resp.Followers = &meta.ChannelFollowerCount
	}
	if meta.PlaylistCount > 0 {
		resp.Posts = &meta.PlaylistCount
	}

	return resp
}
