package inputs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadTargetsSkipsBlankLines(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "targets.txt", "golang\n\n  \npython\n  rust  \n")
	targets, err := LoadTargets(path)
	require.NoError(t, err)
	require.Equal(t, []string{"golang", "python", "rust"}, targets)
}

func TestLoadTargetsEmptyFileIsFatal(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "targets.txt", "\n \n")
	_, err := LoadTargets(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no targets")
}

func TestLoadKeywords(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "keywords.txt", "concurrency\ngoroutine\n")
	keywords, err := LoadKeywords(path)
	require.NoError(t, err)
	require.Equal(t, []string{"concurrency", "goroutine"}, keywords)
}

func TestLoadKeywordsMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadKeywords(filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
}
