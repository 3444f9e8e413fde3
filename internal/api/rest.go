package api

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/Grabber/internal/api/apierror"
	"github.com/hbomb79/Grabber/internal/api/downloads"
	"github.com/hbomb79/Grabber/internal/api/instagram"
	"github.com/hbomb79/Grabber/internal/api/pages"
	"github.com/hbomb79/Grabber/internal/api/youtube"
	"github.com/hbomb79/Grabber/internal/metrics"
	"github.com/hbomb79/Grabber/internal/platform"
	"github.com/hbomb79/Grabber/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var log = logger.Get("API")

type (
	RestConfig struct {
		HostAddr               string   `yaml:"host" env:"HOST" env-default:"0.0.0.0"`
		Port                   int      `yaml:"port" env:"PORT" env-default:"3000"`
		AllowedOrigins         []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
		BodyLimit              string   `yaml:"body_limit" env:"BODY_LIMIT" env-default:"1M"`
		PlaylistLimit          int      `yaml:"playlist_limit" env:"PLAYLIST_LIMIT" env-default:"100"`
		WebDir                 string   `yaml:"web_dir" env:"WEB_DIR"`
		EnableMetrics          bool     `yaml:"enable_metrics" env:"ENABLE_METRICS" env-default:"true"`
		ShutdownTimeoutSeconds int      `yaml:"shutdown_timeout_seconds" env:"SHUTDOWN_TIMEOUT_SECONDS" env-default:"10"`
	}

	controller interface {
		SetRoutes(*echo.Group)
	}

	// Extractor represents a union of all the controller extractor requirements
	Extractor interface {
		downloads.Extractor
		instagram.Extractor
	}

	HealthResponse struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}

	// The RestGateway is a thin-wrapper around the Echo HTTP router. It's sole responsibility
	// is to create the routes Grabber exposes and to install the middleware shared by
	// all of them.
	RestGateway struct {
		config *RestConfig
		ec     *echo.Echo
	}
)

// Addr returns the address the gateway listens on.
func (config *RestConfig) Addr() string {
	return net.JoinHostPort(config.HostAddr, strconv.Itoa(config.Port))
}

// NewRestGateway constructs the Echo router and populates it with all the
// routes defined by the various controllers. The metrics provided may be
// nil, in which case no metrics are recorded or exposed.
func NewRestGateway(config *RestConfig, ex Extractor, m *metrics.Metrics, assets fs.FS) (*RestGateway, error) {
	ec := echo.New()
	ec.OnAddRouteHandler = func(host string, route echo.Route, handler echo.HandlerFunc, middleware []echo.MiddlewareFunc) {
		log.Emit(logger.DEBUG, "Registered new route %s %s\n", route.Method, route.Path)
	}
	ec.HidePort = true
	ec.HideBanner = true
	ec.HTTPErrorHandler = apierror.GetHTTPErrorHandler()

	pagesController, err := pages.New(assets, config.WebDir)
	if err != nil {
		return nil, err
	}

	ec.Pre(middleware.RemoveTrailingSlash())
	ec.Use(middleware.RequestID())
	ec.Use(requestLogger())
	if m != nil {
		ec.Use(metricsRecorder(m))
	}
	ec.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  config.AllowedOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		ExposeHeaders: []string{echo.HeaderContentDisposition, echo.HeaderContentLength},
	}))
	ec.Use(middleware.BodyLimit(config.BodyLimit))
	ec.Use(middleware.Recover())

	ec.GET("/api/health", health)
	if m != nil && config.EnableMetrics {
		ec.GET("/metrics", echo.WrapHandler(m.Handler()))
	}

	validate := validator.New()
	var observer downloads.Observer
	if m != nil {
		observer = m
	}
	base := func(p *platform.Platform) *downloads.Controller {
		return downloads.New(validate, p, ex, observer)
	}

	controllers := map[string]controller{
		"/api/youtube":   youtube.New(base(platform.YouTube), ex, config.PlaylistLimit),
		"/api/instagram": instagram.New(base(platform.Instagram), ex),
		"/api/facebook":  base(platform.Facebook),
		"/api/tiktok":    base(platform.TikTok),
	}
	for prefix, controller := range controllers {
		controller.SetRoutes(ec.Group(prefix))
	}
	pagesController.SetRoutes(ec.Group(""))

	return &RestGateway{config: config, ec: ec}, nil
}

// ServeHTTP allows the gateway to be used directly as an http.Handler.
func (gateway *RestGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gateway.ec.ServeHTTP(w, r)
}

// Run starts the HTTP server and blocks until the context is cancelled, at which
// point in-flight requests are given the configured grace period to complete.
func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	wg := &sync.WaitGroup{}

	// Start echo router
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Emit(logger.SUCCESS, "Listening on %s\n", gateway.config.Addr())
		if err := gateway.ec.Start(gateway.config.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ctxCancel(fmt.Errorf("http server failed: %w", err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(gateway.config.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	log.Emit(logger.STOP, "Shutting down HTTP server\n")
	if err := gateway.ec.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Graceful shutdown failed, closing: %v\n", err)
		gateway.ec.Close()
	}

	wg.Wait()

	// Return cancellation cause if any, otherwise nil as parent context
	// cancellation is not an error case we should report.
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}

func health(ec echo.Context) error {
	return ec.JSON(http.StatusOK, HealthResponse{Status: "OK", Message: "Video Downloader API is running"})
}
