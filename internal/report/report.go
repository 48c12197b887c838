// Package report renders extraction progress and the end-of-run summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"rbxtract/internal/extract"
)

// Format specifies how to render the summary.
type Format int

const (
	// FormatDefault shows grouped totals and the resulting directory tree
	FormatDefault Format = iota
	// FormatJSON outputs structured JSON
	FormatJSON
)

// rootScriptsShown caps how many service-root scripts the default summary
// lists per service before collapsing the rest into a count.
const rootScriptsShown = 3

// WriteProgress writes the one-line progress entry for a written script.
func WriteProgress(w io.Writer, rec extract.Record) {
	fmt.Fprintf(w, "Extracted: %s -> %s\n", rec.LogicalPath, rec.Path)
}

// JSONOutput is the JSON structure for the summary.
type JSONOutput struct {
	TotalScripts int            `json:"totalScripts"`
	Excluded     int            `json:"excluded"`
	Services     map[string]int `json:"services"`
	Scripts      []JSONScript   `json:"scripts"`
}

// JSONScript is one extracted script in the JSON summary.
type JSONScript struct {
	Name        string `json:"name"`
	Class       string `json:"class"`
	Service     string `json:"service"`
	Path        string `json:"path"`
	LogicalPath string `json:"logicalPath"`
	Digest      string `json:"contentDigest"`
	Size        int    `json:"size"`
}

// WriteSummary writes the end-of-run summary for res. outputRoot is walked
// for the directory tree rendering in the default format.
func WriteSummary(w io.Writer, res *extract.Result, outputRoot string, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, res)
	default:
		return writeDefault(w, res, outputRoot)
	}
}

func writeJSON(w io.Writer, res *extract.Result) error {
	output := JSONOutput{
		TotalScripts: len(res.Records),
		Excluded:     res.Excluded,
		Services:     make(map[string]int),
		Scripts:      []JSONScript{},
	}
	for _, rec := range res.Records {
		output.Services[rec.Service]++
		output.Scripts = append(output.Scripts, JSONScript{
			Name:        rec.Name,
			Class:       rec.Class,
			Service:     rec.Service,
			Path:        rec.Path,
			LogicalPath: rec.LogicalPath,
			Digest:      rec.Digest,
			Size:        rec.Size,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func writeDefault(w io.Writer, res *extract.Result, outputRoot string) error {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Extraction complete: %d scripts\n", len(res.Records))
	if res.Excluded > 0 {
		fmt.Fprintf(w, "Excluded by pattern: %d items\n", res.Excluded)
	}

	if len(res.Records) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Scripts by service:")
		writeServiceGroups(w, res.Records)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Directory tree:")
	return WriteTree(w, outputRoot)
}

// writeServiceGroups prints per-service counts grouped by the first
// subfolder of each script's logical path.
func writeServiceGroups(w io.Writer, records []extract.Record) {
	byService := make(map[string][]extract.Record)
	for _, rec := range records {
		byService[rec.Service] = append(byService[rec.Service], rec)
	}

	services := make([]string, 0, len(byService))
	for svc := range byService {
		services = append(services, svc)
	}
	sort.Strings(services)

	for _, svc := range services {
		recs := byService[svc]
		fmt.Fprintf(w, "  %s (%d):\n", svc, len(recs))

		folders := make(map[string]int)
		var rootScripts []string
		for _, rec := range recs {
			parts := strings.Split(rec.LogicalPath, "/")
			if len(parts) > 2 {
				folders[parts[1]]++
			} else {
				rootScripts = append(rootScripts, parts[len(parts)-1])
			}
		}

		names := make([]string, 0, len(folders))
		for name := range folders {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "    %s/ (%d scripts)\n", name, folders[name])
		}

		for i, name := range rootScripts {
			if i == rootScriptsShown {
				fmt.Fprintf(w, "    ... and %d more root scripts\n", len(rootScripts)-rootScriptsShown)
				break
			}
			fmt.Fprintf(w, "    %s%s\n", name, extract.ScriptExt)
		}
	}
}

// WriteTree renders the directory tree under root, two-space indented.
// Hidden entries are skipped.
func WriteTree(w io.Writer, root string) error {
	fmt.Fprintf(w, "%s/\n", filepath.ToSlash(root))
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		depth := strings.Count(filepath.ToSlash(rel), "/") + 1
		indent := strings.Repeat("  ", depth)
		if d.IsDir() {
			fmt.Fprintf(w, "%s%s/\n", indent, d.Name())
		} else {
			fmt.Fprintf(w, "%s%s\n", indent, d.Name())
		}
		return nil
	})
}
