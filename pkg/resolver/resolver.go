// Package resolver expands configured input paths into an ordered list of
// FileTask values and applies the overwrite/filter skip policy, grounded on
// the directory-walking conventions in tool/package.go and
// pkg/manifest/scanner.go kept in the workspace as reference (both walk with
// filepath.Walk; this package upgrades to filepath.WalkDir for the
// fs.DirEntry fast path while keeping their depth-indexed traversal shape).
package resolver

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/goopsie/pngtodds/pkg/config"
	"github.com/goopsie/pngtodds/pkg/report"
)

// reportProgressEvery is how many admitted entries elapse between
// retrieval_progress events.
const reportProgressEvery = 256

// FileTask is one admitted (source, destination) pair flowing through the
// pipeline. Width/Height/MipmapCount start at zero and are populated by the
// Decode stage.
type FileTask struct {
	Index        int
	Source       string
	Dest         string
	Width        int
	Height       int
	MipmapCount  int
}

// candidate is a pre-filter (source, destination) pair discovered by walking
// or manifest parsing, before substring/regex/skip-policy are applied.
type candidate struct {
	source string
	dest   string
}

// Resolve walks cfg.Input (file, directory, or .txt manifest), applies the
// configured filters and skip policy, and returns the admitted tasks in
// stable discovery order. Cache, if non-nil, is consulted to short-circuit
// overwrite_new's mtime/hash comparison (see cache.go); it never changes
// which decisions are valid, only how cheaply they're reached.
func Resolve(cfg *config.Config, stream *report.Stream, cache *Cache) ([]FileTask, error) {
	start := time.Now()
	if stream != nil {
		stream.Started()
	}

	candidates, err := collect(cfg, stream)
	if err != nil {
		return nil, err
	}

	candidates = applyFilters(candidates, cfg)

	tasks := make([]FileTask, 0, len(candidates))
	for i, c := range candidates {
		admit, err := shouldProcess(c, cfg, cache)
		if err != nil {
			if stream != nil {
				stream.Errorf(i, c.source, fmt.Errorf("skip policy check: %w", err))
			}
			continue
		}
		if !admit {
			continue
		}
		tasks = append(tasks, FileTask{Index: len(tasks), Source: c.source, Dest: c.dest})
		if stream != nil && len(tasks)%reportProgressEvery == 0 {
			stream.RetrievalProgressed(len(tasks))
		}
	}

	if stream != nil {
		stream.RetrievalFinished(time.Since(start).Milliseconds())
		stream.ProcessBegan(len(tasks))
	}

	return tasks, nil
}

// collect dispatches on the shape of cfg.Input: a single PNG file, a
// directory to walk, or a .txt manifest listing further paths.
func collect(cfg *config.Config, stream *report.Stream) ([]candidate, error) {
	info, err := os.Stat(cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("resolve input %q: %w", cfg.Input, err)
	}

	switch {
	case info.IsDir():
		return walkDirectory(cfg.Input, cfg, stream)
	case strings.EqualFold(filepath.Ext(cfg.Input), ".txt"):
		return collectManifest(cfg.Input, cfg, stream)
	default:
		root := filepath.Dir(cfg.Input)
		return []candidate{{source: cfg.Input, dest: destinationFor(cfg.Input, root, cfg)}}, nil
	}
}

// walkDirectory collects *.png files under root up to cfg.Depth levels,
// rebasing destinations under cfg.Output when set.
func walkDirectory(root string, cfg *config.Config, stream *report.Stream) ([]candidate, error) {
	var out []candidate
	rootDepth := strings.Count(filepath.Clean(root), string(filepath.Separator))

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if stream != nil {
				stream.Errorf(-1, path, fmt.Errorf("walk %q: %w", path, walkErr))
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if cfg.Depth >= 0 {
				depth := strings.Count(filepath.Clean(path), string(filepath.Separator)) - rootDepth
				if depth > cfg.Depth {
					return fs.SkipDir
				}
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".png") {
			return nil
		}
		out = append(out, candidate{source: path, dest: destinationFor(path, root, cfg)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory %q: %w", root, err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].source < out[j].source })
	return out, nil
}

// collectManifest reads a .txt manifest: each non-blank line is a path
// treated by the file/directory rules, rooted at the manifest's own
// directory, with the destination always placed beside the source (cfg.Output
// is ignored for manifest inputs, per the resolver contract).
func collectManifest(manifestPath string, cfg *config.Config, stream *report.Stream) ([]candidate, error) {
	f, err := os.Open(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("open manifest %q: %w", manifestPath, err)
	}
	defer f.Close()

	manifestDir := filepath.Dir(manifestPath)
	besideSource := *cfg
	besideSource.Output = ""

	var out []candidate
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entryPath := line
		if !filepath.IsAbs(entryPath) {
			entryPath = filepath.Join(manifestDir, entryPath)
		}

		info, err := os.Stat(entryPath)
		if err != nil {
			if stream != nil {
				stream.Errorf(-1, entryPath, fmt.Errorf("manifest entry %q: %w", line, err))
			}
			continue
		}
		if info.IsDir() {
			sub, err := walkDirectory(entryPath, &besideSource, stream)
			if err != nil {
				if stream != nil {
					stream.Errorf(-1, entryPath, err)
				}
				continue
			}
			out = append(out, sub...)
			continue
		}
		out = append(out, candidate{source: entryPath, dest: destinationFor(entryPath, entryPath, &besideSource)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest %q: %w", manifestPath, err)
	}
	return out, nil
}

// destinationFor rebases source under cfg.Output (preserving its path
// relative to root) when Output is set; otherwise the destination sits
// beside the source. The final extension is .dds, or .png for PNG passthrough.
func destinationFor(source, root string, cfg *config.Config) string {
	ext := ".dds"
	if cfg.Format == config.FormatPNG {
		ext = ".png"
	}

	if cfg.Output == "" {
		return replaceExt(source, ext)
	}

	rel, err := filepath.Rel(root, source)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(source)
	}
	return replaceExt(filepath.Join(cfg.Output, rel), ext)
}

func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// applyFilters drops candidates that fail the substring/regex path filters.
func applyFilters(candidates []candidate, cfg *config.Config) []candidate {
	if cfg.Substring == "" && cfg.CompiledRegex() == nil {
		return candidates
	}
	out := candidates[:0]
	for _, c := range candidates {
		if cfg.Substring != "" && !strings.Contains(c.source, cfg.Substring) {
			continue
		}
		if re := cfg.CompiledRegex(); re != nil && !re.MatchString(c.source) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// shouldProcess applies the incremental skip policy: overwrite always
// processes, overwrite_new compares mtimes (or cached digests), neither skips
// whenever the destination already exists.
func shouldProcess(c candidate, cfg *config.Config, cache *Cache) (bool, error) {
	if cfg.Clean {
		return true, nil // clean mode targets destinations for deletion, unconditionally.
	}
	if cfg.Overwrite {
		return true, nil
	}

	destInfo, err := os.Stat(c.dest)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat destination %q: %w", c.dest, err)
	}

	if !cfg.OverwriteNew {
		return false, nil // neither flag set: skip whenever the destination exists.
	}

	if cache != nil {
		unchanged, err := cache.Unchanged(c.source, destInfo.ModTime())
		if err == nil {
			return !unchanged, nil
		}
		// Fall through to the mtime-only comparison on any cache error.
	}

	srcInfo, err := os.Stat(c.source)
	if err != nil {
		return false, fmt.Errorf("stat source %q: %w", c.source, err)
	}
	return srcInfo.ModTime().After(destInfo.ModTime()), nil
}

// CompileFilter validates a user-supplied regex up front, so an invalid
// pattern surfaces as an argument error rather than a mid-walk pipeline_error.
func CompileFilter(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid filter regex %q: %w", pattern, err)
	}
	return re, nil
}
