// Command importer admits every image found under a directory into the corpus.
// Candidates are prepared concurrently in bounded windows and admitted one at a
// time in lexical path order, so the outcome does not depend on scheduling.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/jo-hoe/imagesieve/internal/core"
	"github.com/jo-hoe/imagesieve/internal/detection"
	"github.com/jo-hoe/imagesieve/internal/detection/yolo"
	"golang.org/x/sync/errgroup"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true, ".svg": true,
}

// admitter is the part of core.CoreService the importer drives.
type admitter interface {
	Prepare(ctx context.Context, raw []byte) (*core.Candidate, error)
	Admit(ctx context.Context, candidate *core.Candidate) (*core.AdmissionResult, error)
}

type summary struct {
	Admitted int
	Rejected int
	Invalid  int
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	workers := flag.Int("workers", runtime.GOMAXPROCS(0), "number of images prepared concurrently")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: importer [-config config.yaml] [-workers n] <directory>")
		os.Exit(2)
	}

	if err := run(*configPath, flag.Arg(0), *workers); err != nil {
		slog.Error("import failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, dir string, workers int) error {
	config, err := core.LoadConfig(configPath)
	if err != nil {
		return err
	}
	level, _ := core.ParseLogLevel(config.LogLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	labeler, err := detection.NewLabeler(config.Detector, yolo.New)
	if err != nil {
		return err
	}
	if err := labeler.Load(); err != nil {
		return err
	}
	locker, err := core.NewLocker(context.Background(), config.Lock)
	if err != nil {
		return err
	}
	service, err := core.NewCoreService(config, labeler, locker, nil)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := service.Close(); cerr != nil {
			slog.Error("failed to close core service", "error", cerr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths, err := collectImages(dir)
	if err != nil {
		return err
	}
	slog.Info("importing images", "dir", dir, "files", len(paths), "workers", workers)

	result, err := importImages(ctx, service, paths, workers)
	if err != nil {
		return err
	}
	slog.Info("import finished", "admitted", result.Admitted, "rejected", result.Rejected, "invalid", result.Invalid)
	return nil
}

// collectImages returns the image files under dir in lexical order.
func collectImages(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if imageExtensions[strings.ToLower(filepath.Ext(p))] {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	return paths, nil
}

// importImages walks paths in windows of workers: each window is prepared
// concurrently, then its candidates are admitted sequentially in path order.
// At most one window of prepared candidates is held in memory. Files that are
// not valid images are skipped; any other error aborts the import.
func importImages(ctx context.Context, service admitter, paths []string, workers int) (summary, error) {
	if workers < 1 {
		workers = 1
	}
	var result summary
	for start := 0; start < len(paths); start += workers {
		window := paths[start:min(start+workers, len(paths))]
		candidates, err := prepareWindow(ctx, service, window)
		if err != nil {
			return result, err
		}
		for i, candidate := range candidates {
			if candidate == nil {
				result.Invalid++
				continue
			}
			admission, err := service.Admit(ctx, candidate)
			if err != nil {
				return result, fmt.Errorf("failed to admit %s: %w", window[i], err)
			}
			if admission.Admitted {
				result.Admitted++
			} else {
				result.Rejected++
			}
			slog.Info("image processed",
				"path", window[i],
				"admitted", admission.Admitted,
				"combined_score", admission.Match.CombinedScore,
				"image_id", admission.ImageID)
		}
	}
	return result, nil
}

// prepareWindow prepares one candidate per path concurrently. Invalid images leave a nil entry.
func prepareWindow(ctx context.Context, service admitter, paths []string) ([]*core.Candidate, error) {
	candidates := make([]*core.Candidate, len(paths))
	group, gctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		group.Go(func() error {
			raw, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", p, err)
			}
			candidate, err := service.Prepare(gctx, raw)
			if errors.Is(err, core.ErrInvalidImage) {
				slog.Warn("skipping invalid image", "path", p, "error", err)
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to prepare %s: %w", p, err)
			}
			candidates[i] = candidate
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return candidates, nil
}
