// Package extractor orchestrates the external yt-dlp binary. It is the only
// part of Grabber which spawns processes or touches the filesystem; the HTTP
// layer only ever sees Metadata, Streams and StagedFiles.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hbomb79/Grabber/internal/platform"
	"github.com/hbomb79/Grabber/pkg/logger"
	"github.com/lrstanley/go-ytdlp"
)

var log = logger.Get("Extractor")

type (
	// Observer receives a notification for every tool invocation. The metrics
	// package uses this to record outcomes and latency.
	Observer interface {
		ObserveTool(op string, platform string, duration time.Duration, err error)
	}

	// Job describes a single download.
	Job struct {
		URL string

		// Platform is the name of the platform the URL belongs to, used to
		// select the cookie file.
		Platform string

		// Format is the yt-dlp format selector
		Format string

		// Mode decides whether the output is piped directly or staged on disk.
		Mode platform.Mode

		// Ext is the container/audio format requested for staged modes.
		Ext string
	}

	// QueryOptions tune a metadata query.
	QueryOptions struct {
		Platform string

		// Playlist requests a flat playlist listing instead of single item info.
		Playlist bool

		// Limit, when positive, restricts how many playlist entries are listed.
		Limit int
	}

	Extractor struct {
		config   Config
		observer Observer
		client   *http.Client
	}
)

const (
	opInfo   = "info"
	opStream = "stream"
	opStage  = "stage"
	opFetch  = "fetch"
)

// New validates the configuration provided and constructs an Extractor.
func New(config Config, observer Observer) (*Extractor, error) {
	resolved, err := config.resolve()
	if err != nil {
		return nil, err
	}

	log.Emit(logger.DEBUG, "Extractor using binary %q, staging to %s\n", resolved.BinaryPath, resolved.StagingDir)
	return &Extractor{
		config:   resolved,
		observer: observer,
		client:   &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

// StagingDir returns the directory beneath which per-request staging
// directories are created.
func (ex *Extractor) StagingDir() string { return ex.config.StagingDir }

// Info runs the metadata query for the URL and returns the decoded result.
// The query is bound by the configured info timeout as well as the context.
func (ex *Extractor) Info(ctx context.Context, url string, opts QueryOptions) (meta *Metadata, err error) {
	started := time.Now()
	defer func() { ex.observe(opInfo, opts.Platform, started, err) }()

	if timeout := ex.config.InfoTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := ex.command(opts.Platform).DumpSingleJSON()
	if opts.Playlist {
		cmd.FlatPlaylist().YesPlaylist()
		if opts.Limit > 0 {
			cmd.PlaylistItems(fmt.Sprintf("1:%d", opts.Limit))
		}
	} else {
		cmd.NoPlaylist()
	}

	result, runErr := cmd.Run(ctx, urlArgs(url)...)
	if runErr != nil || result.ExitCode != 0 {
		return nil, toolError(ctx, opInfo, result, runErr)
	}

	stdout := bytes.TrimSpace([]byte(result.Stdout))
	if len(stdout) == 0 {
		return nil, &ToolError{Op: opInfo, ExitCode: result.ExitCode, Stderr: result.Stderr, Err: ErrNoOutput}
	}

	return decodeMetadata(stdout)
}

// command constructs the base yt-dlp command shared by all invocations.
func (ex *Extractor) command(platformName string) *ytdlp.Command {
	cmd := ytdlp.New().
		SetExecutable(ex.config.BinaryPath).
		NoWarnings().
		NoProgress()

	if cookies := ex.config.Cookies.For(platformName); cookies != "" {
		cmd.Cookies(cookies)
	}

	return cmd
}

// urlArgs returns the positional arguments for a URL. The separator
// ensures the tool never interprets the URL as one of its own options.
func urlArgs(url string) []string {
	return []string{"--", url}
}

func (ex *Extractor) observe(op string, platformName string, started time.Time, err error) {
	if ex.observer == nil {
		return
	}

	ex.observer.ObserveTool(op, platformName, time.Since(started), err)
}

// toolError converts the result of a failed go-ytdlp Run in to a ToolError,
// preserving the exit code and stderr where they're available. Failures
// caused by the context ending are reported as the context error.
func toolError(ctx context.Context, op string, result *ytdlp.Result, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s aborted: %w", op, ctxErr)
	}
	if err == nil {
		err = errors.New("non-zero exit code")
	}

	toolErr := &ToolError{Op: op, ExitCode: -1, Err: err}
	if result != nil {
		toolErr.ExitCode = result.ExitCode
		toolErr.Stderr = strings.TrimSpace(result.Stderr)
	}

	return toolErr
}
