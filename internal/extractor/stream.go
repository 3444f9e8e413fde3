package extractor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

const (
	streamBufferSize = 64 * 1024
	maxStderrBytes   = 64 * 1024
)

// Stream is a running tool process whose stdout carries the media. It must
// always be closed, which waits for (or kills) the process.
type Stream struct {
	ctx      context.Context
	cmd      *exec.Cmd
	reader   *bufio.Reader
	stderr   *boundedBuffer
	finished bool
	closed   sync.Once
	closeErr error
	onClose  func(error)
}

// Stream spawns the tool with its output directed to stdout. The call does not
// return until the first byte of media is available, so a tool that fails
// immediately (bad URL, unavailable format) is reported here rather than
// part way through a response.
func (ex *Extractor) Stream(ctx context.Context, job Job) (io.ReadCloser, error) {
	started := time.Now()
	flags := ex.command(job.Platform).
		Format(job.Format).
		Output("-").
		GetFlagConfig().
		ToFlags()

	args := make([]string, 0, 2*len(flags)+2)
	for _, flag := range flags {
		args = append(args, flag.Raw()...)
	}
	cmd := exec.CommandContext(ctx, ex.config.BinaryPath, append(args, urlArgs(job.URL)...)...)

	stderr := &boundedBuffer{limit: maxStderrBytes}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open tool stdout: %w", err)
	}

	log.Debugf("Spawning stream for %s (format %q)\n", job.URL, job.Format)
	if err := cmd.Start(); err != nil {
		startErr := &ToolError{Op: opStream, ExitCode: -1, Err: err}
		ex.observe(opStream, job.Platform, started, startErr)
		return nil, startErr
	}

	stream := &Stream{
		ctx:    ctx,
		cmd:    cmd,
		reader: bufio.NewReaderSize(stdout, streamBufferSize),
		stderr: stderr,
		onClose: func(err error) {
			ex.observe(opStream, job.Platform, started, err)
		},
	}

	if _, err := stream.reader.Peek(1); err != nil {
		stream.finished = true
		closeErr := stream.Close()
		if closeErr == nil {
			closeErr = &ToolError{Op: opStream, ExitCode: 0, Stderr: stderr.String(), Err: ErrNoOutput}
		}

		return nil, closeErr
	}

	return stream, nil
}

func (s *Stream) Read(p []byte) (int, error) {
	n, err := s.reader.Read(p)
	if errors.Is(err, io.EOF) {
		s.finished = true
	}

	return n, err
}

// Close waits for the tool to exit and reports its failure, if any. If the
// stream was not read to completion the process is killed first.
func (s *Stream) Close() error {
	s.closed.Do(func() {
		if !s.finished && s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}

		waitErr := s.cmd.Wait()
		switch {
		case waitErr == nil:
		case s.ctx.Err() != nil:
			s.closeErr = fmt.Errorf("%s aborted: %w", opStream, s.ctx.Err())
		case !s.finished:
			s.closeErr = fmt.Errorf("%s closed before completion: %w", opStream, waitErr)
		default:
			exitCode := -1
			if s.cmd.ProcessState != nil {
				exitCode = s.cmd.ProcessState.ExitCode()
			}
			s.closeErr = &ToolError{Op: opStream, ExitCode: exitCode, Stderr: s.stderr.String(), Err: waitErr}
		}

		if s.onClose != nil {
			s.onClose(s.closeErr)
		}
	})

	return s.closeErr
}

// boundedBuffer keeps at most limit bytes of whatever is written to it,
// discarding the rest. The tool can be very chatty on stderr and only the
// first part is useful for error reporting.
type boundedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if remaining := b.limit - b.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			b.buf.Write(p[:remaining])
		} else {
			b.buf.Write(p)
		}
	}

	return len(p), nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}
