package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Grabber/internal/platform"
)

const stagedOutputTemplate = "media.%(ext)s"

// StagedFile is a download which has been written to a private staging
// directory. Remove must be called once the file has been delivered.
type StagedFile struct {
	Path string
	Size int64
	dir  string
}

// NewStagedFile describes the file at path, which must exist, as staged
// output owned by dir. Removing the StagedFile removes dir.
func NewStagedFile(dir string, path string) (*StagedFile, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: tool reported %s", ErrOutputMissing, path)
	}

	return &StagedFile{Path: path, Size: info.Size(), dir: dir}, nil
}

// Open opens the staged file for reading.
func (f *StagedFile) Open() (*os.File, error) {
	return os.Open(f.Path)
}

// Ext returns the extension of the staged file, without the leading dot.
func (f *StagedFile) Ext() string {
	return strings.TrimPrefix(filepath.Ext(f.Path), ".")
}

// Remove deletes the staging directory and everything in it.
func (f *StagedFile) Remove() error {
	if f.dir == "" {
		return nil
	}

	return os.RemoveAll(f.dir)
}

// Stage runs the tool to completion, writing the output to a new directory
// beneath the staging directory. This is required for merged video/audio and
// for audio extraction, neither of which the tool can perform when writing
// to stdout.
//
// The output location is taken from the path the tool prints after it has
// finished post-processing; it must exist inside the staging directory. On
// any failure the staging directory is removed before returning.
func (ex *Extractor) Stage(ctx context.Context, job Job) (staged *StagedFile, err error) {
	started := time.Now()
	defer func() { ex.observe(opStage, job.Platform, started, err) }()

	dir := filepath.Join(ex.config.StagingDir, uuid.NewString())
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() {
		if err != nil {
			if rmErr := os.RemoveAll(dir); rmErr != nil {
				log.Warnf("Failed to remove staging directory %s: %v\n", dir, rmErr)
			}
		}
	}()

	cmd := ex.command(job.Platform).
		Format(job.Format).
		Output(filepath.Join(dir, stagedOutputTemplate)).
		Print("after_move:filepath").
		NoSimulate()

	switch job.Mode {
	case platform.ModeAudio:
		cmd.ExtractAudio().AudioFormat(orDefault(job.Ext, "mp3"))
	case platform.ModeMerge:
		cmd.MergeOutputFormat(orDefault(job.Ext, "mp4"))
	}

	log.Debugf("Staging %s (format %q, mode %s) in to %s\n", job.URL, job.Format, job.Mode, dir)
	result, runErr := cmd.Run(ctx, urlArgs(job.URL)...)
	if runErr != nil || result.ExitCode != 0 {
		return nil, toolError(ctx, opStage, result, runErr)
	}

	path, err := reportedOutput(result.Stdout, dir)
	if err != nil {
		return nil, err
	}

	staged, err = NewStagedFile(dir, path)
	if err != nil {
		return nil, err
	}
	if ex.config.FfprobeBinaryPath != "" {
		if err := ex.verify(staged, job.Mode); err != nil {
			return nil, err
		}
	}

	return staged, nil
}

// reportedOutput finds the file path printed by the tool. Only the last
// non-empty line is considered, and it must resolve to a location inside dir.
func reportedOutput(stdout string, dir string) (string, error) {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	reported := strings.TrimSpace(lines[len(lines)-1])
	if reported == "" {
		return "", fmt.Errorf("%w: tool did not report an output path", ErrOutputMissing)
	}

	path, err := filepath.Abs(reported)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOutputMissing, err)
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOutputMissing, err)
	}

	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: reported path %s is outside of staging directory", ErrOutputMissing, reported)
	}

	return path, nil
}

func orDefault(s string, dflt string) string {
	if s == "" {
		return dflt
	}

	return s
}
