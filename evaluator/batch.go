package evaluator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/c360studio/crucible/arbiter"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrDuplicateSlug is returned when two idea files would share one report.
var ErrDuplicateSlug = errors.New("duplicate idea slug")

// FindIdeas returns the idea files under dir matching a doublestar pattern,
// sorted by path.
func FindIdeas(dir, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*.yaml"
	}
	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob error: %w", err)
	}
	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		paths = append(paths, filepath.Join(dir, filepath.FromSlash(m)))
	}
	sort.Strings(paths)
	return paths, nil
}

// EvaluateAll evaluates paths with at most concurrency ideas in flight.
// Results keep the order of paths. Paths that map to the same slug are
// rejected before any work starts. Ideas that fail to load are reported in
// Result.Err and skipped; any other error cancels the run.
func (e *Evaluator) EvaluateAll(ctx context.Context, paths []string, concurrency int) ([]*Result, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	if err := checkSlugs(paths); err != nil {
		return nil, err
	}
	results := make([]*Result, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for idx, path := range paths {
		g.Go(func() error {
			res, err := e.EvaluateFile(gctx, path)
			if err != nil {
				if IsLoadError(err) {
					e.logger.Warn("Skipping idea", "path", path, "error", err)
					results[idx] = &Result{Slug: SlugFor(path), IdeaPath: path, Err: err}
					return nil
				}
				return err
			}
			results[idx] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// checkSlugs rejects paths whose reports would overwrite each other.
func checkSlugs(paths []string) error {
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		slug := SlugFor(path)
		if prev, ok := seen[slug]; ok {
			return fmt.Errorf("%w %q: %s and %s", ErrDuplicateSlug, slug, prev, path)
		}
		seen[slug] = path
	}
	return nil
}

// RateLimited delays each judge call until l allows it. A nil limiter
// returns j unchanged.
func RateLimited(j arbiter.Judge, l *rate.Limiter) arbiter.Judge {
	if l == nil {
		return j
	}
	return arbiter.JudgeFunc(func(ctx context.Context, system, user string) (string, error) {
		if err := l.Wait(ctx); err != nil {
			return "", err
		}
		return j.Judge(ctx, system, user)
	})
}

// NewLimiter returns a limiter for perSecond calls, or nil when perSecond
// is not positive.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
