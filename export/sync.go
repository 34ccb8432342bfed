// Package export moves verdicts out of the reports directory: into dataset
// folders, flat batch files, or onto a NATS subject.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/c360studio/crucible/verdict"
)

// DefaultPattern matches the verdict files written next to reports.
const DefaultPattern = "*" + verdict.FileSuffix

// SyncDir copies files under src matching pattern into dst, flattening
// any subdirectories. Existing targets are kept unless overwrite is set.
// It returns the number of files copied.
func SyncDir(src, dst, pattern string, overwrite bool) (int, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return 0, fmt.Errorf("invalid pattern %q", pattern)
	}

	info, err := os.Stat(src)
	if err != nil || !info.IsDir() {
		return 0, fmt.Errorf("source reports dir not found: %s", src)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}

	matches, err := doublestar.Glob(os.DirFS(src), pattern)
	if err != nil {
		return 0, fmt.Errorf("glob error: %w", err)
	}
	sort.Strings(matches)

	count := 0
	for _, rel := range matches {
		from := filepath.Join(src, filepath.FromSlash(rel))
		fi, err := os.Stat(from)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		to := filepath.Join(dst, filepath.Base(from))
		if !overwrite {
			if _, err := os.Stat(to); err == nil {
				continue
			}
		}
		if err := copyFile(from, to, fi.Mode().Perm()); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func copyFile(from, to string, perm os.FileMode) error {
	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(to, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", from, err)
	}
	return out.Close()
}
