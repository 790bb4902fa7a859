// Command fetchassets downloads the chess piece images served by the board
// page into web/dist/img/chesspieces/wikipedia.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBaseURL = "https://chessboardjs.com/img/chesspieces/wikipedia/"
	defaultDir     = "web/dist/img/chesspieces/wikipedia"
	// The site rejects the default Go user agent.
	userAgent = "Mozilla/5.0"
)

var pieces = []string{"wP", "wN", "wB", "wR", "wQ", "wK", "bP", "bN", "bB", "bR", "bQ", "bK"}

func main() {
	baseURL := flag.String("base", defaultBaseURL, "URL prefix of the piece images")
	dir := flag.String("dir", defaultDir, "target directory")
	timeout := flag.Duration("timeout", 30*time.Second, "overall download timeout")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	f := &fetcher{client: &http.Client{}, baseURL: *baseURL, dir: *dir}
	if err := f.fetchAll(ctx, pieces); err != nil {
		slog.Error("Some pieces failed to download", "error", err)
		os.Exit(1)
	}
	slog.Info("All pieces downloaded", "dir", *dir, "count", len(pieces))
}

type fetcher struct {
	client  *http.Client
	baseURL string
	dir     string
}

// fetchAll downloads every piece concurrently. One failure does not stop the
// others; all failures are reported together.
func (f *fetcher) fetchAll(ctx context.Context, names []string) error {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}

	var (
		mu     sync.Mutex
		result *multierror.Error
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, name := range names {
		g.Go(func() error {
			if err := f.fetch(ctx, name); err != nil {
				slog.Warn("Download failed", "piece", name, "error", err)
				mu.Lock()
				result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
				return nil
			}
			slog.Info("Downloaded", "piece", name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return result.ErrorOrNil()
}

func (f *fetcher) fetch(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+name+".png", nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	target := filepath.Join(f.dir, name+".png")
	tmp, err := os.CreateTemp(f.dir, name+".*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}
