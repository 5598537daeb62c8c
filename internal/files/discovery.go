package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultCensusExt is the extension of census_out files
const DefaultCensusExt = ".txt"

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Discovery provides file discovery operations
type Discovery struct {
	basePath string
	ext      string
}

// NewDiscovery creates a discovery instance. Relative paths are resolved
// against basePath; an empty basePath means the working directory.
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath, ext: DefaultCensusExt}
}

// WithExtension changes the extension used when expanding directories
func (d *Discovery) WithExtension(ext string) *Discovery {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	d.ext = ext
	return d
}

func (d *Discovery) resolve(path string) string {
	if d.basePath == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(d.basePath, path)
}

// ExpandInputs turns CLI arguments into an ordered, de-duplicated list of
// file paths. An argument that does not exist as a path is split on
// whitespace first. Plain paths that do not exist are kept so the caller can
// report them per file; a glob that matches nothing is an error.
func (d *Discovery) ExpandInputs(args []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(path string) {
		clean := filepath.Clean(path)
		if !seen[clean] {
			seen[clean] = true
			out = append(out, clean)
		}
	}

	for _, arg := range args {
		for _, field := range d.splitArg(arg) {
			path := d.resolve(field)

			if hasMeta(field) {
				matches, err := d.FindFilesByPattern(field)
				if err != nil {
					return nil, err
				}
				if len(matches) == 0 {
					return nil, fmt.Errorf("no files match pattern %s", field)
				}
				for _, m := range matches {
					add(m.Path)
				}
				continue
			}

			info, err := os.Stat(path)
			if err == nil && info.IsDir() {
				found, err := d.FindCensusFiles(field)
				if err != nil {
					return nil, err
				}
				for _, f := range found {
					add(f.Path)
				}
				continue
			}

			add(path)
		}
	}

	return out, nil
}

// splitArg keeps an argument naming an existing file or directory whole,
// so paths containing spaces survive
func (d *Discovery) splitArg(arg string) []string {
	if _, err := os.Stat(d.resolve(arg)); err == nil {
		return []string{arg}
	}
	return strings.Fields(arg)
}

// FindCensusFiles lists the census files directly inside dir, sorted by name
func (d *Discovery) FindCensusFiles(dir string) ([]FileInfo, error) {
	fullPath := d.resolve(dir)

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", fullPath, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if d.ext != "" && !strings.EqualFold(filepath.Ext(name), d.ext) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		files = append(files, FileInfo{
			Path:    filepath.Join(fullPath, name),
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	return files, nil
}

// FindFilesByPattern returns the regular files matching a glob pattern
func (d *Discovery) FindFilesByPattern(pattern string) ([]FileInfo, error) {
	matches, err := filepath.Glob(d.resolve(pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
	}

	var files []FileInfo
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}

		files = append(files, FileInfo{
			Path:    match,
			Name:    filepath.Base(match),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	return files, nil
}

func hasMeta(path string) bool {
	return strings.ContainsAny(path, `*?[`)
}
