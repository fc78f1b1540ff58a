// Package pipeline orchestrates the Load/Decode/Scale/Mipmap/Encode/Save
// stages over the tasks the resolver admits. The worker-pool shape —
// goroutines started from a fixed count, a shared context.CancelFunc for
// cooperative shutdown, sync.WaitGroup for join, atomic counters for
// lock-free progress — is grounded on
// rklaeser-studyguide.parallel/g/pkg/processor/worker_pool.go's WorkerPool,
// adapted from a Redis job queue to an in-process buffered-channel relay
// (the shape c/tile_image_parallel.go uses for its own stage-to-stage
// handoff).
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/goopsie/pngtodds/pkg/bc"
	"github.com/goopsie/pngtodds/pkg/config"
	"github.com/goopsie/pngtodds/pkg/dds"
	"github.com/goopsie/pngtodds/pkg/filter"
	"github.com/goopsie/pngtodds/pkg/imaging"
	"github.com/goopsie/pngtodds/pkg/report"
	"github.com/goopsie/pngtodds/pkg/resolver"
)

// token carries one FileTask's byproducts as it moves through the pipeline;
// each stage is the exclusive owner of its fields until it hands off to the
// next, matching the ownership rule in the data-model contract.
type token struct {
	task            resolver.FileTask
	pngBytes        []byte
	chain           *imaging.MipmapImage
	effectiveFormat config.Format
	encodedLevels   [][]byte
	skip            bool
}

// Result summarizes one run for the caller: how many files were processed,
// skipped, and whether any pipeline_error was emitted (the exit-code-2 case).
type Result struct {
	Processed int
	Skipped   int
	HadErrors bool
}

// Run resolves cfg.Input, then streams every admitted file through the
// pipeline, reporting progress and errors onto stream. A nil stream is valid:
// the pipeline still runs, it just has no observer.
func Run(ctx context.Context, cfg *config.Config, stream *report.Stream) (Result, error) {
	cache, err := resolver.LoadCache(cfg.Cache)
	if err != nil {
		return Result{}, fmt.Errorf("load conversion cache: %w", err)
	}

	tasks, err := resolver.Resolve(cfg, stream, cache)
	if err != nil {
		return Result{}, fmt.Errorf("resolve input: %w", err)
	}

	if cfg.Clean {
		return runClean(tasks, cfg, stream), nil
	}

	return runConvert(ctx, tasks, cfg, stream, cache)
}

// runClean deletes every admitted destination instead of encoding; sources
// are never read in this mode.
func runClean(tasks []resolver.FileTask, cfg *config.Config, stream *report.Stream) Result {
	var result Result
	for _, t := range tasks {
		if cfg.DryRun {
			result.Processed++
			continue
		}
		if err := os.Remove(t.Dest); err != nil && !os.IsNotExist(err) {
			if stream != nil {
				stream.Errorf(t.Index, t.Dest, fmt.Errorf("clean: %w", err))
			}
			result.HadErrors = true
			continue
		}
		result.Processed++
		if stream != nil {
			stream.Encoded(t.Index, t.Dest)
		}
	}
	return result
}

// runConvert wires the Load (serial) / Decode-Scale-Mipmap-Encode (parallel)
// / Save (serial-per-token, pipeline-parallel across tokens) stages with an
// admission semaphore bounding global in-flight tokens at 2*parallelism.
func runConvert(ctx context.Context, tasks []resolver.FileTask, cfg *config.Config, stream *report.Stream, cache *resolver.Cache) (Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	parallelism := cfg.Threads
	if parallelism < 1 {
		parallelism = 1
	}
	admission := make(chan struct{}, 2*parallelism)

	loaded := make(chan *token, parallelism)
	encoded := make(chan *token, parallelism)

	var cancelled atomic.Bool
	var processed, skipped atomic.Int64
	var hadErrors atomic.Bool

	var wg sync.WaitGroup

	// Load: serial, to avoid thrashing spinning storage.
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(loaded)
		for _, t := range tasks {
			if cancelled.Load() {
				return
			}
			select {
			case admission <- struct{}{}:
			case <-ctx.Done():
				return
			}

			tok := &token{task: t}
			blob, err := os.ReadFile(t.Source)
			if err != nil {
				if stream != nil {
					stream.Errorf(t.Index, t.Source, fmt.Errorf("load: %w", err))
				}
				hadErrors.Store(true)
				tok.skip = true
			} else {
				tok.pngBytes = blob
				if stream != nil {
					stream.Loaded(t.Index, t.Source)
				}
			}

			select {
			case loaded <- tok:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Decode/Scale/Mipmap/Encode: fully parallel.
	var processWG sync.WaitGroup
	for i := 0; i < parallelism; i++ {
		processWG.Add(1)
		go func() {
			defer processWG.Done()
			for tok := range loaded {
				if !tok.skip && !cancelled.Load() {
					if err := processToken(tok, cfg); err != nil {
						if stream != nil {
							stream.Errorf(tok.task.Index, tok.task.Source, fmt.Errorf("encode: %w", err))
						}
						hadErrors.Store(true)
						tok.skip = true
					}
				}
				select {
				case encoded <- tok:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		processWG.Wait()
		close(encoded)
	}()

	// Save: serial-per-token (each write is one file), pipeline-parallel
	// across tokens via N workers draining the same channel.
	var saveWG sync.WaitGroup
	for i := 0; i < parallelism; i++ {
		saveWG.Add(1)
		go func() {
			defer saveWG.Done()
			for tok := range encoded {
				if !tok.skip {
					if err := saveToken(tok, cfg); err != nil {
						if stream != nil {
							stream.Errorf(tok.task.Index, tok.task.Dest, fmt.Errorf("save: %w", err))
						}
						hadErrors.Store(true)
					} else {
						if cache != nil {
							_ = cache.Record(tok.task.Source)
						}
						processed.Add(1)
						if stream != nil {
							stream.Encoded(tok.task.Index, tok.task.Source)
						}
					}
				} else {
					skipped.Add(1)
				}
				<-admission
			}
		}()
	}

	wg.Wait()
	processWG.Wait()
	saveWG.Wait()

	if cache != nil {
		if err := cache.Save(); err != nil && stream != nil {
			stream.Warnf(fmt.Sprintf("save conversion cache: %v", err))
		}
	}

	return Result{
		Processed: int(processed.Load()),
		Skipped:   int(skipped.Load()),
		HadErrors: hadErrors.Load(),
	}, nil
}

// processToken runs Decode, Scale, Mipmap and Encode in sequence for one
// token, each a no-op when its preconditions (vflip off, scale=100, mipmaps
// disabled, etc.) don't apply.
func processToken(tok *token, cfg *config.Config) error {
	chain, w, h, err := imaging.Decode(tok.pngBytes, cfg.VFlip, cfg.Mipmaps, cfg.FixSize)
	if err != nil {
		return fmt.Errorf("decode %q: %w", tok.task.Source, err)
	}
	tok.task.Width, tok.task.Height = w, h

	newW, newH, active := imaging.ScaleDims(w, h, cfg.Scale, cfg.MaxSize)
	if active {
		chain = filter.ScaleChain(chain, newW, newH, cfg.Mipmaps, cfg.ScaleFilter)
	}

	if cfg.Mipmaps {
		filter.PopulateMipmap(chain, cfg.MipmapFilter, cfg.MipmapBlur)
	}
	tok.task.MipmapCount = chain.Count()
	tok.chain = chain

	tok.effectiveFormat = effectiveFormat(chain, cfg)
	if tok.effectiveFormat == config.FormatPNG {
		return nil // PNG bypass: Save re-serializes the decoded chain directly.
	}

	levels := make([][]byte, chain.Count())
	for i, level := range chain.Mips() {
		enc, err := bc.EncodeImage(&level, tok.effectiveFormat, cfg.Quality, cfg.AlphaBlack,
			config.BlackAlphaThreshold)
		if err != nil {
			return fmt.Errorf("encode level %d of %q: %w", i, tok.task.Source, err)
		}
		levels[i] = enc
	}
	tok.encodedLevels = levels
	return nil
}

// effectiveFormat selects alpha_format over format when any pixel in the
// base level has alpha < 255 and alpha_format was explicitly configured.
func effectiveFormat(chain *imaging.MipmapImage, cfg *config.Config) config.Format {
	if !cfg.HasAlpha {
		return cfg.Format
	}
	base := chain.Base()
	for y := 0; y < base.Height(); y++ {
		for x := 0; x < base.Width(); x++ {
			_, _, _, a := base.At(x, y)
			if a < 255 {
				return cfg.AlphaFormat
			}
		}
	}
	return cfg.Format
}

// saveToken writes the final bytes to tok.task.Dest via a .part-then-rename
// atomic path, suppressed entirely in dry-run mode.
func saveToken(tok *token, cfg *config.Config) error {
	if cfg.DryRun {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(tok.task.Dest), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	var out []byte
	var err error
	if tok.effectiveFormat == config.FormatPNG {
		out, err = imaging.EncodePNG(tok.chain.Base())
	} else {
		out, err = dds.Encode(tok.chain, tok.effectiveFormat, tok.encodedLevels)
	}
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}

	partPath := tok.task.Dest + ".part"
	if err := os.WriteFile(partPath, out, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", partPath, err)
	}
	if err := os.Rename(partPath, tok.task.Dest); err != nil {
		return fmt.Errorf("rename %q to %q: %w", partPath, tok.task.Dest, err)
	}
	return nil
}
