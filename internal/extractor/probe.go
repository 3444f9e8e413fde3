package extractor

import (
	"errors"
	"fmt"

	"github.com/floostack/transcoder/ffmpeg"
	"github.com/hbomb79/Grabber/internal/platform"
)

var ErrProbeFailed = errors.New("staged output failed verification")

// verify uses ffprobe to confirm that the staged file carries the streams
// expected for the mode it was produced with: merges need both a video and
// an audio stream, and audio extraction needs an audio stream.
func (ex *Extractor) verify(staged *StagedFile, mode platform.Mode) error {
	cfg := &ffmpeg.Config{FfprobeBinPath: ex.config.FfprobeBinaryPath}
	metadata, err := ffmpeg.New(cfg).Input(staged.Path).GetMetadata()
	if err != nil {
		return fmt.Errorf("%w: failed to probe %s: %v", ErrProbeFailed, staged.Path, err)
	}

	var hasVideo, hasAudio bool
	for _, stream := range metadata.GetStreams() {
		switch stream.GetCodecType() {
		case "video":
			hasVideo = true
		case "audio":
			hasAudio = true
		}
	}

	if !hasAudio {
		return fmt.Errorf("%w: %s has no audio stream", ErrProbeFailed, staged.Path)
	}
	if mode == platform.ModeMerge && !hasVideo {
		return fmt.Errorf("%w: %s has no video stream", ErrProbeFailed, staged.Path)
	}

	log.Verbosef("Verified staged output %s (format %s, duration %s)\n",
		staged.Path, metadata.GetFormat().GetFormatName(), metadata.GetFormat().GetDuration())
	return nil
}
