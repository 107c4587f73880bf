package refresh

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func TestDiscover_GroupsSiblingsByStem(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "video.mp4"), 10)
	writeFile(t, filepath.Join(dir, "video.info.json"), 5)
	writeFile(t, filepath.Join(dir, "video.jpg"), 3)

	groups, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	g := groups[0]
	assert.Equal(t, "video.mp4", g.PrimaryPath)
	assert.Equal(t, int64(18), g.Size)
	assert.ElementsMatch(t, []string{"video.mp4", "video.info.json", "video.jpg"}, g.Files)
}

func TestDiscover_SkipsHiddenFiles(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "visible.txt"), 1)
	writeFile(t, filepath.Join(dir, ".hidden"), 1)

	groups, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "visible.txt", groups[0].PrimaryPath)
}

func TestDiscover_SeparatesByDirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "2024")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	writeFile(t, filepath.Join(dir, "a.txt"), 1)
	writeFile(t, filepath.Join(sub, "a.txt"), 1)

	groups, err := Discover(dir)
	require.NoError(t, err)
	assert.Len(t, groups, 2)
}

func TestDiscover_EmptyDirectory(t *testing.T) {
	groups, err := Discover(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestChoosePrimary_VideoOutranksSidecars(t *testing.T) {
	got := choosePrimary([]string{"a.info.json", "a.mp4", "a.jpg"})
	assert.Equal(t, "a.mp4", got)
}

func TestChoosePrimary_HTMLOutranksReadability(t *testing.T) {
	got := choosePrimary([]string{"page.readability.html", "page.html"})
	assert.Equal(t, "page.html", got)
}

func TestChoosePrimary_TieBreaksOnShorterName(t *testing.T) {
	got := choosePrimary([]string{"a.txt", "aa.txt"})
	assert.Equal(t, "a.txt", got)
}

func TestStemAndSuffix_RecognizesMultiPartSuffix(t *testing.T) {
	stem, suffix := stemAndSuffix("page.readability.html")
	assert.Equal(t, "page", stem)
	assert.Equal(t, ".readability.html", suffix)
}

func TestStemAndSuffix_FallsBackToLastExtension(t *testing.T) {
	stem, suffix := stemAndSuffix("document.pdf")
	assert.Equal(t, "document", stem)
	assert.Equal(t, ".pdf", suffix)
}
