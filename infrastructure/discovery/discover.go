package discovery

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// Candidate is one executable found by the engine-directory scan.
type Candidate struct {
	Name string
	Path string
}

// Files whose base name (case-insensitive, extension stripped) never names
// an engine.
var skipNames = map[string]struct{}{
	"readme": {}, "license": {}, "licence": {}, "changelog": {},
	"changes": {}, "copying": {}, "notice": {}, "authors": {},
	"contributors": {}, "todo": {}, "makefile": {}, "cmakelists": {},
}

var skipExtensions = map[string]struct{}{
	".txt": {}, ".md": {}, ".rst": {}, ".html": {}, ".json": {},
	".yml": {}, ".yaml": {}, ".xml": {}, ".cfg": {}, ".ini": {},
	".log": {}, ".sh": {}, ".bat": {}, ".py": {}, ".c": {}, ".h": {},
	".cpp": {}, ".zip": {}, ".tar": {}, ".gz": {}, ".7z": {},
	".dll": {}, ".so": {}, ".dylib": {}, ".pdf": {},
}

// DiscoverEngines scans a directory and one level of subdirectories for
// engine binaries. The engine name comes from the file name, extension
// stripped; a top-level engine shadows a same-named one in a subdirectory.
func DiscoverEngines(directory string) []Candidate {
	if directory == "" {
		return nil
	}
	if info, statErr := os.Stat(directory); statErr != nil || !info.IsDir() {
		return nil
	}

	var engines []Candidate
	seen := make(map[string]struct{})

	appendCandidate := func(path string) {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if _, dup := seen[strings.ToLower(name)]; dup {
			return
		}
		abs, absErr := filepath.Abs(path)
		if absErr != nil {
			abs = path
		}
		engines = append(engines, Candidate{Name: name, Path: abs})
		seen[strings.ToLower(name)] = struct{}{}
	}

	for _, entry := range sortedEntries(directory) {
		full := filepath.Join(directory, entry.Name())
		if entry.IsDir() {
			continue
		}
		if isEngineCandidate(full, entry.Name()) {
			appendCandidate(full)
		}
	}

	for _, entry := range sortedEntries(directory) {
		if !entry.IsDir() {
			continue
		}
		subdir := filepath.Join(directory, entry.Name())
		for _, sub := range sortedEntries(subdir) {
			if sub.IsDir() {
				continue
			}
			full := filepath.Join(subdir, sub.Name())
			if isEngineCandidate(full, sub.Name()) {
				appendCandidate(full)
			}
		}
	}

	return engines
}

func sortedEntries(directory string) []os.DirEntry {
	entries, readErr := os.ReadDir(directory)
	if readErr != nil {
		return nil
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	return entries
}

// isEngineCandidate filters out documentation, archives, libraries, and
// non-executables. Windows trusts the .exe extension because the execute
// permission bit is meaningless there.
func isEngineCandidate(path, name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))

	if _, skip := skipNames[base]; skip {
		return false
	}
	if _, skip := skipExtensions[ext]; skip {
		return false
	}

	info, statErr := os.Stat(path)
	if statErr != nil || info.IsDir() {
		return false
	}

	if runtime.GOOS == "windows" {
		return ext == ".exe"
	}
	return info.Mode()&0o111 != 0
}
