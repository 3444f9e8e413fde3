package downloads_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/Grabber/internal/api/apierror"
	"github.com/hbomb79/Grabber/internal/api/downloads"
	"github.com/hbomb79/Grabber/internal/extractor"
	"github.com/hbomb79/Grabber/internal/platform"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/random"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/fs"
)

type mockExtractor struct{ mock.Mock }

func (m *mockExtractor) Info(_ context.Context, url string, opts extractor.QueryOptions) (*extractor.Metadata, error) {
	args := m.Called(url, opts)
	meta, _ := args.Get(0).(*extractor.Metadata)
	return meta, args.Error(1)
}

func (m *mockExtractor) Stream(_ context.Context, job extractor.Job) (io.ReadCloser, error) {
	args := m.Called(job)
	switch stream := args.Get(0).(type) {
	case func(extractor.Job) io.ReadCloser:
		return stream(job), args.Error(1)
	case io.ReadCloser:
		return stream, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *mockExtractor) Stage(_ context.Context, job extractor.Job) (*extractor.StagedFile, error) {
	args := m.Called(job)
	staged, _ := args.Get(0).(*extractor.StagedFile)
	return staged, args.Error(1)
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

func newServer(p *platform.Platform, ex downloads.Extractor) *echo.Echo {
	ec := echo.New()
	ec.HTTPErrorHandler = apierror.GetHTTPErrorHandler()
	downloads.New(validator.New(), p, ex, nil).SetRoutes(ec.Group("/api/" + p.Name))

	return ec
}

func post(ec *echo.Echo, path string, body any) *httptest.ResponseRecorder {
	encoded, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(encoded)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ec.ServeHTTP(rec, req)

	return rec
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, message string) errorBody {
	t.Helper()
	assert.Equal(t, status, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "error response must be JSON: %s", rec.Body.String())
	assert.Equal(t, message, body.Error)
	return body
}

func streamOf(content string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(content))
}

func TestValidation_RejectsBeforeInvokingTool(t *testing.T) {
	for _, p := range platform.All() {
		t.Run(p.Name, func(t *testing.T) {
			ex := &mockExtractor{}
			ec := newServer(p, ex)
			invalid := map[string]string{"url": "https://example.com/video/" + random.String(8)}

			assertError(t, post(ec, "/api/"+p.Name+"/info", invalid), http.StatusBadRequest, "Please provide a valid "+p.Label+" URL")
			assertError(t, post(ec, "/api/"+p.Name+"/download", invalid), http.StatusBadRequest, "Please provide a valid "+p.Label+" URL")
			for alias := range p.Aliases {
				assertError(t, post(ec, "/api/"+p.Name+alias, invalid), http.StatusBadRequest, "Please provide a valid "+p.Label+" URL")
			}

			ex.AssertNotCalled(t, "Info", mock.Anything, mock.Anything)
			ex.AssertNotCalled(t, "Stream", mock.Anything)
			ex.AssertNotCalled(t, "Stage", mock.Anything)
		})
	}
}

func TestValidation_RejectsNonHTTPURLs(t *testing.T) {
	inputs := []string{
		"--update-to=attacker/youtube.com@latest",
		"--exec=touch /tmp/x youtube.com",
		"-a youtube.com",
		"file:///etc/youtube.com",
		"youtube.com/watch?v=abc",
		"ftp://www.youtube.com/watch?v=abc",
		"https:///youtube.com",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			ex := &mockExtractor{}
			ec := newServer(platform.YouTube, ex)
			body := map[string]string{"url": input}

			assertError(t, post(ec, "/api/youtube/info", body), http.StatusBadRequest, "Please provide a valid YouTube URL")
			assertError(t, post(ec, "/api/youtube/download", body), http.StatusBadRequest, "Please provide a valid YouTube URL")
			assertError(t, post(ec, "/api/youtube/mp3", body), http.StatusBadRequest, "Please provide a valid YouTube URL")

			ex.AssertNotCalled(t, "Info", mock.Anything, mock.Anything)
			ex.AssertNotCalled(t, "Stream", mock.Anything)
			ex.AssertNotCalled(t, "Stage", mock.Anything)
		})
	}
}

func TestValidation_MissingURL(t *testing.T) {
	ex := &mockExtractor{}
	ec := newServer(platform.Facebook, ex)

	assertError(t, post(ec, "/api/facebook/info", map[string]string{}), http.StatusBadRequest, "URL is required")
	assertError(t, post(ec, "/api/facebook/download", map[string]string{"url": "  "}), http.StatusBadRequest, "Facebook URL is required")
	assertError(t, post(ec, "/api/facebook/reel", map[string]string{}), http.StatusBadRequest, "Facebook URL is required")
	ex.AssertNotCalled(t, "Info", mock.Anything, mock.Anything)
}

func TestValidation_MalformedBody(t *testing.T) {
	ec := newServer(platform.TikTok, &mockExtractor{})

	req := httptest.NewRequest(http.MethodPost, "/api/tiktok/info", strings.NewReader("{not json"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ec.ServeHTTP(rec, req)

	assertError(t, rec, http.StatusBadRequest, "Request body must be valid JSON")
}

func TestValidation_RejectsNonASCIIFormat(t *testing.T) {
	ex := &mockExtractor{}
	ec := newServer(platform.TikTok, ex)

	body := assertError(t,
		post(ec, "/api/tiktok/download", map[string]string{"url": "https://www.tiktok.com/@u/video/1", "format_id": "bést"}),
		http.StatusBadRequest, "Invalid download request")
	assert.Contains(t, body.Details, "FormatID")
	ex.AssertNotCalled(t, "Info", mock.Anything, mock.Anything)
}

func TestInfo_ReturnsMetadataAndPresets(t *testing.T) {
	url := "https://www.youtube.com/watch?v=abc"
	ex := &mockExtractor{}
	ex.On("Info", url, extractor.QueryOptions{Platform: "youtube"}).Return(&extractor.Metadata{
		Title:       "A Title",
		Channel:     "Some Channel",
		Duration:    61,
		Description: strings.Repeat("d", 300),
		Thumbnails:  []extractor.Thumbnail{{URL: "small"}, {URL: "large"}},
		ViewCount:   42,
		UploadDate:  "20240102",
	}, nil)

	rec := post(newServer(platform.YouTube, ex), "/api/youtube/info", map[string]string{"url": url})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp downloads.InfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "A Title", resp.Title)
	assert.Equal(t, "Some Channel", resp.Uploader)
	assert.Equal(t, "large", resp.Thumbnail)
	assert.Len(t, resp.Description, 200)
	assert.Equal(t, int64(42), resp.ViewCount)
	assert.Equal(t, "20240102", resp.UploadDate)
	require.Len(t, resp.Formats, len(platform.YouTube.Presets))
	assert.Equal(t, "2160p", resp.Formats[0].Quality)
	assert.Equal(t, "Audio Only", resp.Formats[len(resp.Formats)-1].Quality)
	ex.AssertExpectations(t)
}

func TestInfo_FallbackTitle(t *testing.T) {
	url := "https://www.instagram.com/reel/xyz/"
	ex := &mockExtractor{}
	ex.On("Info", url, mock.Anything).Return(&extractor.Metadata{}, nil)

	rec := post(newServer(platform.Instagram, ex), "/api/instagram/info", map[string]string{"url": url})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp downloads.InfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Instagram Content", resp.Title)
	assert.NotEmpty(t, resp.Formats)
}

func TestInfo_ToolFailure(t *testing.T) {
	url := "https://www.tiktok.com/@u/video/1"
	ex := &mockExtractor{}
	ex.On("Info", url, mock.Anything).Return(nil, &extractor.ToolError{Op: "info", ExitCode: 1, Stderr: "ERROR: Video unavailable"})

	body := assertError(t, post(newServer(platform.TikTok, ex), "/api/tiktok/info", map[string]string{"url": url}),
		http.StatusInternalServerError, "Failed to get TikTok content information")
	assert.Equal(t, "ERROR: Video unavailable", body.Details)
}

func TestDownload_StreamsWithSanitizedFilename(t *testing.T) {
	url := "https://www.youtube.com/watch?v=abc"
	title := "My *great* video: " + strings.Repeat("x", 60)
	ex := &mockExtractor{}
	ex.On("Info", url, mock.Anything).Return(&extractor.Metadata{Title: title}, nil)
	ex.On("Stream", extractor.Job{URL: url, Platform: "youtube", Format: "best[height<=720]", Mode: platform.ModeStream, Ext: "mp4"}).
		Return(streamOf("VIDEO-BYTES"), nil)

	rec := post(newServer(platform.YouTube, ex), "/api/youtube/download", map[string]string{"url": url, "format_id": "best[height<=720]"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	expectedName := platform.YouTube.SafeFilename(title)
	assert.Len(t, expectedName, 50)
	assert.NotContains(t, expectedName, "*")
	assert.Equal(t, fmt.Sprintf(`attachment; filename="%s.mp4"`, expectedName), rec.Header().Get(echo.HeaderContentDisposition))
	assert.Equal(t, "application/octet-stream", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "VIDEO-BYTES", rec.Body.String())
	ex.AssertExpectations(t)
}

func TestDownload_TitleInBodySkipsInfoQuery(t *testing.T) {
	url := "https://www.youtube.com/watch?v=abc&list=PL1"
	ex := &mockExtractor{}
	ex.On("Stream", mock.Anything).Return(streamOf("ENTRY"), nil)

	rec := post(newServer(platform.YouTube, ex), "/api/youtube/playlist/download", map[string]string{"url": url, "title": "Entry One"})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, `attachment; filename="Entry One.mp4"`, rec.Header().Get(echo.HeaderContentDisposition))
	ex.AssertNotCalled(t, "Info", mock.Anything, mock.Anything)
}

func TestDownload_PresetChosenByFormatIDOnly(t *testing.T) {
	url := "https://www.instagram.com/reel/abc"
	ex := &mockExtractor{}
	ex.On("Stream", extractor.Job{URL: url, Platform: "instagram", Format: "worst", Mode: platform.ModeStream, Ext: "mp4"}).
		Return(streamOf("LOW"), nil)

	body := map[string]string{"url": url, "title": "clip", "format_id": "worst", "quality": "Best Quality"}
	rec := post(newServer(platform.Instagram, ex), "/api/instagram/download", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "LOW", rec.Body.String())
	ex.AssertExpectations(t)
}

func TestDownload_StreamFailureBeforeHeaders(t *testing.T) {
	url := "https://fb.watch/abc"
	ex := &mockExtractor{}
	ex.On("Info", url, mock.Anything).Return(&extractor.Metadata{Title: "t"}, nil)
	ex.On("Stream", mock.Anything).Return(nil, &extractor.ToolError{Op: "stream", ExitCode: 1, Stderr: "ERROR: Requested format is not available"})

	body := assertError(t, post(newServer(platform.Facebook, ex), "/api/facebook/video", map[string]string{"url": url}),
		http.StatusInternalServerError, "Failed to download Facebook content")
	assert.Equal(t, "ERROR: Requested format is not available", body.Details)
}

func TestDownload_MergeRemovesStagingDirectory(t *testing.T) {
	url := "https://www.youtube.com/watch?v=abc"
	fourK := platform.YouTube.Presets[0]
	dir := fs.NewDir(t, "staged", fs.WithFile("media.mp4", "MERGED-4K"))
	staged, err := extractor.NewStagedFile(dir.Path(), filepath.Join(dir.Path(), "media.mp4"))
	require.NoError(t, err)

	ex := &mockExtractor{}
	ex.On("Info", url, mock.Anything).Return(&extractor.Metadata{Title: "Four K"}, nil)
	ex.On("Stage", extractor.Job{URL: url, Platform: "youtube", Format: fourK.FormatID, Mode: platform.ModeMerge, Ext: "mp4"}).Return(staged, nil)

	rec := post(newServer(platform.YouTube, ex), "/api/youtube/download", map[string]string{"url": url, "format_id": fourK.FormatID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "MERGED-4K", rec.Body.String())
	assert.Equal(t, "9", rec.Header().Get(echo.HeaderContentLength))
	assert.Equal(t, `attachment; filename="Four K.mp4"`, rec.Header().Get(echo.HeaderContentDisposition))

	_, statErr := os.Stat(dir.Path())
	assert.True(t, os.IsNotExist(statErr), "staging directory should be removed after download")
	ex.AssertExpectations(t)
}

func TestDownload_AliasForcesAudioPreset(t *testing.T) {
	url := "https://www.tiktok.com/@u/video/1"
	dir := fs.NewDir(t, "staged", fs.WithFile("media.mp3", "AUDIO"))
	staged, err := extractor.NewStagedFile(dir.Path(), filepath.Join(dir.Path(), "media.mp3"))
	require.NoError(t, err)

	ex := &mockExtractor{}
	ex.On("Stage", extractor.Job{URL: url, Platform: "tiktok", Format: "bestaudio", Mode: platform.ModeAudio, Ext: "mp3"}).Return(staged, nil)

	rec := post(newServer(platform.TikTok, ex), "/api/tiktok/audio", map[string]string{"url": url, "format_id": "worst", "title": "Sound"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "audio/mpeg", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, `attachment; filename="Sound.mp3"`, rec.Header().Get(echo.HeaderContentDisposition))
	ex.AssertExpectations(t)
}

func TestDownload_StageFailure(t *testing.T) {
	url := "https://www.youtube.com/watch?v=abc"
	ex := &mockExtractor{}
	ex.On("Stage", mock.Anything).Return(nil, fmt.Errorf("wrapped: %w", extractor.ErrOutputMissing))

	body := assertError(t, post(newServer(platform.YouTube, ex), "/api/youtube/mp3", map[string]string{"url": url, "title": "x"}),
		http.StatusInternalServerError, "Failed to download YouTube content")
	assert.Contains(t, body.Details, extractor.ErrOutputMissing.Error())
}

func TestDownload_ConcurrentRequestsAreIndependent(t *testing.T) {
	ex := &mockExtractor{}
	ex.On("Stream", mock.Anything).Return(func(job extractor.Job) io.ReadCloser {
		return streamOf("body-for-" + job.URL)
	}, nil)
	ec := newServer(platform.TikTok, ex)

	wg := &sync.WaitGroup{}
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			url := fmt.Sprintf("https://www.tiktok.com/@u/video/%d", i)
			rec := post(ec, "/api/tiktok/download", map[string]string{"url": url, "title": fmt.Sprintf("Video %d", i)})

			if rec.Body.String() != "body-for-"+url {
				errs <- fmt.Errorf("request %d received body %q", i, rec.Body.String())
			}
			if expected := fmt.Sprintf(`attachment; filename="Video %d.mp4"`, i); rec.Header().Get(echo.HeaderContentDisposition) != expected {
				errs <- errors.New("unexpected Content-Disposition " + rec.Header().Get(echo.HeaderContentDisposition))
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
