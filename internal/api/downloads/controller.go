package downloads

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/Grabber/internal/api/apierror"
	"github.com/hbomb79/Grabber/internal/extractor"
	"github.com/hbomb79/Grabber/internal/platform"
	"github.com/hbomb79/Grabber/pkg/logger"
	"github.com/labstack/echo/v4"
)

type (
	Extractor interface {
		Info(ctx context.Context, url string, opts extractor.QueryOptions) (*extractor.Metadata, error)
		Stream(ctx context.Context, job extractor.Job) (io.ReadCloser, error)
		Stage(ctx context.Context, job extractor.Job) (*extractor.StagedFile, error)
	}

	// Observer is notified as media is delivered to clients.
	Observer interface {
		DownloadStarted(platform string)
		DownloadFinished(platform string, written int64)
	}

	// Controller implements the info and download endpoints for a single
	// platform. One Controller is constructed per platform; the exported
	// methods are used by the platform-specific controllers which add
	// extra routes on top.
	Controller struct {
		platform  *platform.Platform
		extractor Extractor
		validate  *validator.Validate
		observer  Observer
		log       logger.Logger
	}
)

func New(validate *validator.Validate, p *platform.Platform, ex Extractor, observer Observer) *Controller {
	return &Controller{
		platform:  p,
		extractor: ex,
		validate:  validate,
		observer:  observer,
		log:       logger.Get(p.Label + "Controller"),
	}
}

// SetRoutes registers info, download and the platform's download aliases
// on the group provided.
func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.POST("/info", controller.info)
	eg.POST("/download", controller.download)

	aliases := make([]string, 0, len(controller.platform.Aliases))
	for route := range controller.platform.Aliases {
		aliases = append(aliases, route)
	}
	sort.Strings(aliases)
	for _, route := range aliases {
		eg.POST(route, controller.DownloadWithFormat(controller.platform.Aliases[route]))
	}
}

func (controller *Controller) Platform() *platform.Platform { return controller.platform }

// info responds with the metadata for the URL in the request, alongside
// the platform's list of presets.
func (controller *Controller) info(ec echo.Context) error {
	var request InfoRequest
	if err := ec.Bind(&request); err != nil {
		return apierror.BadRequest("Request body must be valid JSON")
	}

	url, err := controller.CheckURL(request.URL, "URL is required")
	if err != nil {
		return err
	}

	meta, err := controller.extractor.Info(ec.Request().Context(), url, extractor.QueryOptions{Platform: controller.platform.Name})
	if err != nil {
		return controller.ToolFailure(controller.InfoFailedMessage(), err)
	}

	return ec.JSON(http.StatusOK, NewInfoResponse(controller.platform, meta))
}

func (controller *Controller) download(ec echo.Context) error {
	return controller.serveDownload(ec, "")
}

// DownloadWithFormat returns a handler which behaves the same as the
// download endpoint. If format is not empty it replaces any format_id
// supplied by the client.
func (controller *Controller) DownloadWithFormat(format string) echo.HandlerFunc {
	return func(ec echo.Context) error {
		return controller.serveDownload(ec, format)
	}
}

func (controller *Controller) serveDownload(ec echo.Context, forcedFormat string) error {
	var request DownloadRequest
	if err := ec.Bind(&request); err != nil {
		return apierror.BadRequest("Request body must be valid JSON")
	}

	url, err := controller.CheckURL(request.URL, controller.platform.Label+" URL is required")
	if err != nil {
		return err
	}
	if err := controller.validate.Struct(request); err != nil {
		return apierror.APIError{Status: http.StatusBadRequest, Message: "Invalid download request", Details: err.Error()}
	}

	formatID := request.FormatID
	if forcedFormat != "" {
		formatID = forcedFormat
	}
	preset := controller.platform.Preset(formatID)

	title := strings.TrimSpace(request.Title)
	if title == "" {
		meta, err := controller.extractor.Info(ec.Request().Context(), url, extractor.QueryOptions{Platform: controller.platform.Name})
		if err != nil {
			return controller.ToolFailure(controller.DownloadFailedMessage(), err)
		}
		title = meta.Title
	}

	job := extractor.Job{
		URL:      url,
		Platform: controller.platform.Name,
		Format:   preset.FormatID,
		Mode:     preset.Mode,
		Ext:      preset.Ext,
	}
	basename := controller.platform.SafeFilename(title)
	controller.log.Infof("Download of %s requested (preset %q, %s)\n", url, preset.Quality, preset.Mode)
	if preset.Mode.Staged() {
		return controller.serveStaged(ec, job, basename, preset)
	}

	return controller.serveStream(ec, job, basename, preset)
}

// serveStream pipes the tool's stdout straight to the client.
func (controller *Controller) serveStream(ec echo.Context, job extractor.Job, basename string, preset platform.Preset) error {
	stream, err := controller.extractor.Stream(ec.Request().Context(), job)
	if err != nil {
		return controller.ToolFailure(controller.DownloadFailedMessage(), err)
	}

	_, copyErr := controller.WriteAttachment(ec, stream, preset.ContentType(), basename+"."+preset.Ext, -1)
	closeErr := stream.Close()
	if copyErr != nil || closeErr != nil {
		controller.log.Errorf("Download of %s truncated (copy: %v, tool: %v)\n", job.URL, copyErr, closeErr)
	}

	return nil
}

// serveStaged waits for the tool to write the output to disk, then sends
// the file. The staging directory is always removed before returning.
func (controller *Controller) serveStaged(ec echo.Context, job extractor.Job, basename string, preset platform.Preset) error {
	staged, err := controller.extractor.Stage(ec.Request().Context(), job)
	if err != nil {
		return controller.ToolFailure(controller.DownloadFailedMessage(), err)
	}
	defer func() {
		if err := staged.Remove(); err != nil {
			controller.log.Warnf("Failed to remove staged output %s: %v\n", staged.Path, err)
		}
	}()

	file, err := staged.Open()
	if err != nil {
		return controller.ToolFailure(controller.DownloadFailedMessage(), err)
	}
	defer file.Close()

	ext := staged.Ext()
	if ext == "" {
		ext = preset.Ext
	}
	if _, err := controller.WriteAttachment(ec, file, preset.ContentType(), basename+"."+ext, staged.Size); err != nil {
		controller.log.Errorf("Download of %s truncated: %v\n", job.URL, err)
	}

	return nil
}

// WriteAttachment commits a 200 response with attachment headers and copies
// the reader to the client. size may be negative if it is not known.
func (controller *Controller) WriteAttachment(ec echo.Context, r io.Reader, contentType string, filename string, size int64) (int64, error) {
	header := ec.Response().Header()
	header.Set(echo.HeaderContentType, contentType)
	header.Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	if size >= 0 {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(size, 10))
	}
	ec.Response().WriteHeader(http.StatusOK)

	if controller.observer != nil {
		controller.observer.DownloadStarted(controller.platform.Name)
	}
	written, err := io.Copy(ec.Response(), r)
	if controller.observer != nil {
		controller.observer.DownloadFinished(controller.platform.Name, written)
	}

	return written, err
}

// CheckURL ensures the URL is present, is an absolute http(s) URL and
// belongs to this platform. The missing message differs between endpoints.
func (controller *Controller) CheckURL(raw string, missingMessage string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", apierror.BadRequest(missingMessage)
	}

	invalid := apierror.BadRequest(fmt.Sprintf("Please provide a valid %s URL", controller.platform.Label))
	parsed, err := url.Parse(candidate)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", invalid
	}
	if !controller.platform.Matches(candidate) {
		return "", invalid
	}

	return candidate, nil
}

// ToolFailure converts an extractor error in to a 500 APIError.
func (controller *Controller) ToolFailure(message string, err error) error {
	return apierror.Internal(message, extractor.Details(err), err)
}

func (controller *Controller) InfoFailedMessage() string {
	return fmt.Sprintf("Failed to get %s content information", controller.platform.Label)
}

func (controller *Controller) DownloadFailedMessage() string {
	return fmt.Sprintf("Failed to download %s content", controller.platform.Label)
}
