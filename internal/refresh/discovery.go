package refresh

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// knownSuffixes lists the multi-part filename suffixes the discovery walk
// recognizes, longest first, so ".readability.html" is stripped whole
// rather than leaving a stray ".readability" stem.
var knownSuffixes = sortedByLengthDesc([]string{
	".readability.html",
	".readability.json",
	".readability.txt",
	".info.json",
	".en.vtt",
})

// primaryPriority ranks a file's suffix for selecting a group's primary
// path: lower ranks win. Video containers
// and the bare singlefile page outrank every sidecar.
var primaryPriority = map[string]int{
	".mp4":               0,
	".webm":              0,
	".mkv":               0,
	".avi":               0,
	".html":              1,
	".readability.html":  2,
	".info.json":         3,
	".readability.json":  4,
	".readability.txt":   5,
	".jpg":               6,
	".png":               6,
	".en.vtt":            7,
	".vtt":               7,
	".json":              8,
	".txt":               9,
}

const defaultPriority = 100

// candidateGroup is one FileGroup candidate discovered on disk: every
// sibling file sharing (directory, stem).
type candidateGroup struct {
	Directory   string
	Stem        string
	Files       []string // relative filenames, sorted
	PrimaryPath string   // relative filename chosen by extension priority
	Size        int64    // total size of every file in the group
}

// Discover walks root, grouping files by (directory, stem). Symlinks are
// not followed; hidden files (leading dot) are skipped.
func Discover(root string) ([]candidateGroup, error) {
	type key struct {
		directory string
		stem      string
	}

	groups := make(map[key]*candidateGroup)
	sizes := make(map[key]map[string]int64)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		directory := filepath.Dir(path)
		stem, _ := stemAndSuffix(d.Name())
		k := key{directory: directory, stem: stem}

		g, ok := groups[k]
		if !ok {
			g = &candidateGroup{Directory: directory, Stem: stem}
			groups[k] = g
			sizes[k] = make(map[string]int64)
		}

		g.Files = append(g.Files, d.Name())

		if info, statErr := d.Info(); statErr == nil {
			sizes[k][d.Name()] = info.Size()
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	result := make([]candidateGroup, 0, len(groups))

	for k, g := range groups {
		sort.Strings(g.Files)
		g.PrimaryPath = choosePrimary(g.Files)

		var total int64
		for _, size := range sizes[k] {
			total += size
		}

		g.Size = total

		result = append(result, *g)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Directory != result[j].Directory {
			return result[i].Directory < result[j].Directory
		}

		return result[i].Stem < result[j].Stem
	})

	return result, nil
}

// stemAndSuffix splits name into its stem and recognized suffix, preferring
// the longest known multi-part suffix before falling back to the last
// extension.
func stemAndSuffix(name string) (string, string) {
	for _, suf := range knownSuffixes {
		if strings.HasSuffix(name, suf) {
			return strings.TrimSuffix(name, suf), suf
		}
	}

	ext := filepath.Ext(name)

	return strings.TrimSuffix(name, ext), ext
}

// choosePrimary picks the primary file among sibling filenames by
// extension-priority rank, breaking ties by shortest name.
func choosePrimary(files []string) string {
	best := ""
	bestRank := defaultPriority + 1

	for _, f := range files {
		_, suffix := stemAndSuffix(f)

		rank, ok := primaryPriority[suffix]
		if !ok {
			rank = defaultPriority
		}

		if rank < bestRank || (rank == bestRank && len(f) < len(best)) {
			best = f
			bestRank = rank
		}
	}

	return best
}

func sortedByLengthDesc(suffixes []string) []string {
	out := append([]string(nil), suffixes...)

	sort.Slice(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })

	return out
}
