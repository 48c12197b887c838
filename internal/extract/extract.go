// Package extract materializes scripts and folders from a parsed place file
// onto disk, recreating the logical service hierarchy as real directories.
package extract

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"rbxtract/internal/ancestry"
	"rbxtract/internal/cas"
	"rbxtract/internal/fsname"
	"rbxtract/internal/ignore"
	"rbxtract/internal/rbxml"
)

// ScriptExt is appended to every extracted script file.
const ScriptExt = ".lua"

// Marker folders under StarterPlayer with special path handling.
const (
	starterPlayerScripts    = "StarterPlayerScripts"
	starterCharacterScripts = "StarterCharacterScripts"
)

// Record describes one extracted script.
type Record struct {
	Name        string // instance name
	Class       string // Script, LocalScript or ModuleScript
	Service     string // owning service name
	Path        string // destination relative to the output root, slash-separated
	LogicalPath string // Service/.../Name after rewrite rules
	Digest      string // BLAKE3 digest of the source text
	Size        int    // source text length in bytes
}

// Options configures a run.
type Options struct {
	Output   string          // output root directory
	Exclude  *ignore.Matcher // optional logical-path exclusions
	Progress func(Record)    // called once per written script, in order
}

// Result aggregates one run.
type Result struct {
	Records  []Record
	Excluded int // items skipped by exclusion patterns
}

// Run deletes and recreates the output root, then walks every item of doc
// once, writing script sources and recreating Folder instances. Resolution
// gaps (no name, no recognized service, empty source) are silent skips;
// storage failures abort the run.
func Run(doc *rbxml.Document, opts Options) (*Result, error) {
	if opts.Output == "" {
		return nil, fmt.Errorf("output root must not be empty")
	}
	if err := os.RemoveAll(opts.Output); err != nil {
		return nil, fmt.Errorf("cleaning output directory: %w", err)
	}
	for _, tag := range ancestry.BaseDirs() {
		if err := os.MkdirAll(filepath.Join(opts.Output, tag), 0o755); err != nil {
			return nil, fmt.Errorf("creating base directory %s: %w", tag, err)
		}
	}

	resolver := ancestry.NewResolver(doc)
	used := make(map[string]struct{})
	res := &Result{}

	for _, it := range doc.All() {
		name, ok := it.Name()
		if !ok {
			continue
		}
		service, ancPath, ok := resolver.Resolve(it)
		if !ok {
			continue
		}

		switch {
		case rbxml.IsScript(it.Class):
			if err := extractScript(it, name, service, ancPath, opts, used, res); err != nil {
				return nil, err
			}
		case it.Class == rbxml.ClassFolder:
			if err := materializeFolder(service, ancPath, opts, res); err != nil {
				return nil, err
			}
		}
	}

	return res, nil
}

func extractScript(it *rbxml.Item, name, service string, ancPath []string, opts Options, used map[string]struct{}, res *Result) error {
	source := it.Source()
	if source == "" {
		return nil
	}
	if excluded(opts.Exclude, service, ancPath) {
		res.Excluded++
		return nil
	}

	baseTag, _ := ancestry.ServiceDir(service)
	ancPath = rewrite(service, ancPath)

	// Non-final segments become directories; the final segment (or the
	// item's own name when the path is empty) becomes the file name.
	segs := make([]string, 0, len(ancPath)+1)
	segs = append(segs, baseTag)
	if len(ancPath) > 0 {
		for _, seg := range ancPath[:len(ancPath)-1] {
			segs = append(segs, fsname.Clean(seg))
		}
		segs = append(segs, fsname.Clean(ancPath[len(ancPath)-1])+ScriptExt)
	} else {
		segs = append(segs, fsname.Clean(name)+ScriptExt)
	}

	rel := allocate(used, path.Join(segs...))
	dest := filepath.Join(opts.Output, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", rel, err)
	}
	if err := os.WriteFile(dest, []byte(source), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", rel, err)
	}

	rec := Record{
		Name:        name,
		Class:       it.Class,
		Service:     service,
		Path:        rel,
		LogicalPath: path.Join(append([]string{service}, ancPath...)...),
		Digest:      cas.SumHex([]byte(source)),
		Size:        len(source),
	}
	res.Records = append(res.Records, rec)
	if opts.Progress != nil {
		opts.Progress(rec)
	}
	return nil
}

func materializeFolder(service string, ancPath []string, opts Options, res *Result) error {
	if len(ancPath) == 0 {
		return nil
	}
	if excluded(opts.Exclude, service, ancPath) {
		res.Excluded++
		return nil
	}

	// Rewrite rules apply to scripts only; a bare Folder under a marker
	// keeps its place in the hierarchy.
	baseTag, _ := ancestry.ServiceDir(service)

	segs := make([]string, 0, len(ancPath)+2)
	segs = append(segs, opts.Output, baseTag)
	for _, seg := range ancPath {
		segs = append(segs, fsname.Clean(seg))
	}
	dir := filepath.Join(segs...)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating folder %s: %w", dir, err)
	}
	return nil
}

// rewrite applies the service-specific path rules. Only StarterPlayer has
// any: a leading scripts-root marker is flattened away, a leading
// character-scripts marker is kept as a real subfolder.
func rewrite(service string, ancPath []string) []string {
	if service != "StarterPlayer" || len(ancPath) == 0 {
		return ancPath
	}
	switch ancPath[0] {
	case starterPlayerScripts:
		return ancPath[1:]
	case starterCharacterScripts:
		// kept as-is
	}
	return ancPath
}

// excluded matches the pre-rewrite logical path against the exclusion
// patterns, so patterns are written against the hierarchy as it appears
// in Studio.
func excluded(m *ignore.Matcher, service string, ancPath []string) bool {
	if m == nil || m.Empty() {
		return false
	}
	return m.Match(path.Join(append([]string{service}, ancPath...)...))
}

// allocate reserves rel in the used set, suffixing _1, _2, ... before the
// extension until a free path is found. The set is authoritative within a
// run; the filesystem is never polled.
func allocate(used map[string]struct{}, rel string) string {
	if _, taken := used[rel]; !taken {
		used[rel] = struct{}{}
		return rel
	}
	stem := strings.TrimSuffix(rel, ScriptExt)
	for i := 1; ; i++ {
		cand := fmt.Sprintf("%s_%d%s", stem, i, ScriptExt)
		if _, taken := used[cand]; !taken {
			used[cand] = struct{}{}
			return cand
		}
	}
}
