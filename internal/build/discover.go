package build

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/codeatlas/codeatlas/internal/lang"
	"github.com/codeatlas/codeatlas/internal/merkle"
)

// FileInfo is a discovered source file.
type FileInfo struct {
	Path     string // absolute
	RelPath  string // slash-separated, relative to the repo root
	Language lang.Language
}

// ManifestFile is a discovered build/package manifest.
type ManifestFile struct {
	Path    string
	RelPath string
	Kind    lang.ManifestKind
}

// Discover walks the repository and returns source and manifest files,
// both sorted by relative path so downstream processing is
// deterministic.
func Discover(ctx context.Context, repoPath string, filter *merkle.ExclusionFilter) ([]FileInfo, []ManifestFile, error) {
	var files []FileInfo
	var manifests []ManifestFile

	err := filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(repoPath, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && filter.SkipDir(d.Name(), rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if filter.SkipFile(rel) {
			return nil
		}

		if k, ok := lang.ManifestForPath(path); ok {
			manifests = append(manifests, ManifestFile{Path: path, RelPath: rel, Kind: k})
			return nil
		}
		if l, ok := lang.ForPath(path); ok {
			files = append(files, FileInfo{Path: path, RelPath: rel, Language: l})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	sort.Slice(manifests, func(i, j int) bool { return manifests[i].RelPath < manifests[j].RelPath })
	return files, manifests, nil
}
