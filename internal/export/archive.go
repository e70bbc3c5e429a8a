package export

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/jeanhaley32/reflexctl/internal/constants"
)

// Manifest walks root and returns the slash-separated paths, relative to root,
// of every regular file to archive. Hidden entries and the named directories
// and files are skipped. Symlinks to files are included and archived with the
// target's content. Read errors anywhere in the walk, dangling links and
// entries that are not files fail the manifest.
func Manifest(root string, excludeDirs, excludeFiles mapset.Set[string]) ([]string, error) {
	if excludeDirs == nil {
		excludeDirs = mapset.NewThreadUnsafeSet[string]()
	}
	if excludeFiles == nil {
		excludeFiles = mapset.NewThreadUnsafeSet[string]()
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") || excludeDirs.Contains(name) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || excludeFiles.Contains(name) {
			return nil
		}
		if !d.Type().IsRegular() {
			// Symlinks are archived as their target; anything else cannot be.
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("failed to resolve %s: %w", path, err)
			}
			if !info.Mode().IsRegular() {
				return fmt.Errorf("cannot archive %s: not a regular file", path)
			}
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}

// archiveExcludes returns the artifact file names kept out of every archive.
func archiveExcludes() mapset.Set[string] {
	return mapset.NewThreadUnsafeSet(
		constants.FrontendZip,
		constants.BackendZip,
		constants.FrontendZip+constants.TempArchiveSuffix,
		constants.BackendZip+constants.TempArchiveSuffix,
	)
}

// writeArchive deflates files, relative to root, into target. The archive is
// written under a temporary name and renamed once complete; on failure the
// temporary file is removed and target is left untouched.
func writeArchive(ctx context.Context, target, root string, files []string, advance func()) (err error) {
	tmp := target + constants.TempArchiveSuffix
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, constants.FilePermissions)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	zw := zip.NewWriter(f)
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Debugf("%s: %s", target, name)
		if err := addFile(zw, root, name); err != nil {
			return err
		}
		advance()
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", target, err)
	}
	return nil
}

func addFile(zw *zip.Writer, root, name string) error {
	path := filepath.Join(root, filepath.FromSlash(name))
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to build header for %s: %w", path, err)
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer in.Close()
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("failed to compress %s: %w", path, err)
	}
	return nil
}
