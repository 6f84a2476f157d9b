// Package fetch downloads the prebuilt document store.
package fetch

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrUnsafePath is returned for archive entries that would land outside the target directory.
var ErrUnsafePath = errors.New("archive entry escapes target directory")

// Fetcher downloads and unpacks zip archives. Nil fields fall back to
// http.DefaultClient and a no-op logger.
type Fetcher struct {
	Client *http.Client
	Logger *zap.Logger
}

// New returns a Fetcher with a generous download timeout.
func New(logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{Client: &http.Client{Timeout: 10 * time.Minute}, Logger: logger}
}

// Archive downloads the zip at url and extracts it into dir. On failure only
// what this call created is removed: dir itself when it did not exist before,
// otherwise the extracted entries. Other files already in dir are kept.
func (f *Fetcher) Archive(ctx context.Context, url, dir string) (err error) {
	_, statErr := os.Stat(dir)
	existed := statErr == nil
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	var created []string
	defer func() {
		if err == nil {
			return
		}
		if !existed {
			_ = os.RemoveAll(dir)
			return
		}
		for i := len(created) - 1; i >= 0; i-- {
			_ = os.RemoveAll(created[i])
		}
	}()

	tmp, err := os.CreateTemp("", "symptomrag-*.zip")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("downloading store archive", zap.String("url", url), zap.String("dir", dir))
	n, err := f.download(ctx, url, tmp)
	if err != nil {
		return err
	}
	if err := extract(tmp, n, dir, &created); err != nil {
		return fmt.Errorf("extracting archive: %w", err)
	}
	logger.Info("store archive extracted", zap.String("dir", dir), zap.Int64("bytes", n))
	return nil
}

func (f *Fetcher) download(ctx context.Context, url string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("downloading %s: unexpected status %s", url, resp.Status)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return 0, fmt.Errorf("downloading %s: %w", url, err)
	}
	return n, nil
}

// extract unpacks the archive into dir. When every entry sits under one
// top-level directory named like dir, that level is dropped. Every path it
// writes or newly creates is appended to created.
func extract(r io.ReaderAt, size int64, dir string, created *[]string) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return err
	}
	strip := commonRoot(zr.File, filepath.Base(dir))
	for _, file := range zr.File {
		name := strings.TrimPrefix(file.Name, strip)
		if name == "" {
			continue
		}
		target, err := safeJoin(dir, name)
		if err != nil {
			return err
		}
		if top := firstMissing(dir, target); top != "" {
			*created = append(*created, top)
		}
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		// an existing file is overwritten, so it counts as extracted
		*created = append(*created, target)
		if err := writeFile(file, target); err != nil {
			return err
		}
	}
	return nil
}

// firstMissing returns the outermost path between dir and target that does
// not exist yet, or "" when target already exists.
func firstMissing(dir, target string) string {
	missing := ""
	for p := target; p != dir && p != filepath.Dir(p); p = filepath.Dir(p) {
		if _, err := os.Lstat(p); err == nil {
			break
		}
		missing = p
	}
	return missing
}

func commonRoot(files []*zip.File, base string) string {
	prefix := base + "/"
	for _, f := range files {
		if !strings.HasPrefix(f.Name, prefix) {
			return ""
		}
	}
	return prefix
}

func safeJoin(dir, name string) (string, error) {
	target := filepath.Join(dir, filepath.FromSlash(name))
	rel, err := filepath.Rel(dir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

func writeFile(file *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
