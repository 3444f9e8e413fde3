package helpers

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// FakeInfoJSON is printed by the fake tool for metadata queries.
const FakeInfoJSON = `{"id":"abc123","title":"Test: Video / With *Symbols*","uploader":"Tester","duration":12.5,` +
	`"view_count":1500.0,"upload_date":20240101,"thumbnail":"https://img.example/t.jpg","description":"A test video",` +
	`"formats":[{"format_id":"18","ext":"mp4","height":360.0},{"format_id":"22","ext":"mp4","height":null}],` +
	`"entries":[{"title":"First","url":"https://www.youtube.com/watch?v=1","duration":30},{"title":"Second","url":"https://www.youtube.com/watch?v=2"}],` +
	`"playlist_count":2}`

// FakeMedia is written to stdout (or the staged file) by the fake tool.
const FakeMedia = "FAKE-MEDIA-PAYLOAD"

// fakeToolScript mimics the parts of yt-dlp used by Grabber. Behaviour is
// selected by markers in the URL:
//
//	fail    - prints an ERROR line to stderr and exits 1
//	empty   - exits 0 without writing anything
//	escape  - (staged) reports a path outside of the output directory
//	missing - (staged) reports a path which was never written
//	slow    - (stream) writes one byte, (staged) writes a partial file, then hangs
//
// The arguments of the most recent invocation are written, one per line,
// to a file alongside the script (see RecordedArgs).
const fakeToolScript = `#!/bin/sh
printf '%s\n' "$@" > "$0.argv"
out=""
ext="mp4"
staged=""
url=""
while [ $# -gt 0 ]; do
	case "$1" in
		-o|--output) out="$2"; shift ;;
		-f|--format|--cookies|--playlist-items|--merge-output-format) shift ;;
		--audio-format) ext="$2"; shift ;;
		--print) staged=1; shift ;;
		--) url="$2"; break ;;
		-*) ;;
		*) url="$1" ;;
	esac
	shift
done

case "$url" in
	*fail*) echo "WARNING: something minor" >&2; echo "ERROR: [generic] Unsupported URL: $url" >&2; exit 1 ;;
	*empty*) exit 0 ;;
esac

if [ -n "$staged" ]; then
	file=$(echo "$out" | sed "s/%(ext)s/$ext/")
	case "$url" in
		*escape*) echo "/etc/passwd"; exit 0 ;;
		*missing*) echo "$file"; exit 0 ;;
		*slow*) printf 'partial' > "$file.part"; exec sleep 30 ;;
	esac
	printf '%s' "` + FakeMedia + `" > "$file"
	echo "[Merger] Merging formats"
	echo "$file"
	exit 0
fi

if [ "$out" = "-" ]; then
	case "$url" in
		*slow*) printf 'X'; exec sleep 30 ;;
	esac
	printf '%s' "` + FakeMedia + `"
	exit 0
fi

cat <<'EOF'
` + FakeInfoJSON + `
EOF
`

// SkipWithoutShell skips tests which rely on executing shell scripts.
func SkipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tool scripts require a POSIX shell")
	}
}

// WriteExecutable writes an executable script to the directory provided
// and returns its path.
func WriteExecutable(t *testing.T, dir string, name string, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755), "failed to write executable %s", name)

	return path
}

// FakeTool writes the fake yt-dlp script to a temporary directory and returns
// the path to it.
func FakeTool(t *testing.T) string {
	t.Helper()
	SkipWithoutShell(t)

	return WriteExecutable(t, t.TempDir(), "yt-dlp", fakeToolScript)
}

// RecordedArgs returns the arguments the fake tool at path was last
// invoked with.
func RecordedArgs(t *testing.T, path string) []string {
	t.Helper()
	raw, err := os.ReadFile(path + ".argv")
	require.NoError(t, err, "fake tool at %s has not been invoked", path)

	return strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
}

// FakeProbe writes a fake ffprobe script which reports a stream for each
// of the codec types provided, and returns the path to it. With no codec
// types the script fails as ffprobe does for an unreadable input.
func FakeProbe(t *testing.T, codecTypes ...string) string {
	t.Helper()
	SkipWithoutShell(t)

	if len(codecTypes) == 0 {
		return WriteExecutable(t, t.TempDir(), "ffprobe", "#!/bin/sh\necho 'Invalid data found when processing input' >&2\nexit 1\n")
	}

	streams := make([]string, 0, len(codecTypes))
	for i, codecType := range codecTypes {
		streams = append(streams, fmt.Sprintf(`{"index":%d,"codec_type":%q}`, i, codecType))
	}
	output := fmt.Sprintf(`{"format":{"filename":"media","format_name":"mov,mp4,m4a","duration":"12.500000"},"streams":[%s]}`, strings.Join(streams, ","))

	return WriteExecutable(t, t.TempDir(), "ffprobe", "#!/bin/sh\ncat <<'EOF'\n"+output+"\nEOF\n")
}
