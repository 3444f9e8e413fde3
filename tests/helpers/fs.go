package helpers

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"gotest.tools/v3/fs"
)

// StagingDir creates a temporary staging directory which is removed when
// the test completes.
func StagingDir(t *testing.T) string {
	t.Helper()
	return fs.NewDir(t, "grabber-staging").Path()
}

// AssertDirEmpty asserts that the directory exists and contains nothing,
// which is the expected state of the staging directory once all requests
// have completed.
func AssertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	assert.NoError(t, err, "failed to read directory %s", dir)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Empty(t, names, "expected directory %s to be empty", dir)
}
