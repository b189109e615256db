// Package pdf shells out to poppler utilities for rasterization and text
// extraction of provider PDFs.
package pdf

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// rasterConcurrency bounds parallel pdftoppm invocations per document.
const rasterConcurrency = 4

// PageImage is one rasterized PDF page ready for a vision model call.
type PageImage struct {
	PageNumber int    // 1-based
	MediaType  string // always image/png
	Data       string // base64-encoded
}

// Converter wraps the poppler CLI tools. Zero value uses binaries from PATH.
type Converter struct {
	PdfToPpmPath  string
	PdfInfoPath   string
	PdfToTextPath string
}

// NewConverter creates a Converter; empty paths default to the PATH binaries.
func NewConverter(pdftoppm, pdfinfo, pdftotext string) *Converter {
	if pdftoppm == "" {
		pdftoppm = "pdftoppm"
	}
	if pdfinfo == "" {
		pdfinfo = "pdfinfo"
	}
	if pdftotext == "" {
		pdftotext = "pdftotext"
	}
	return &Converter{PdfToPpmPath: pdftoppm, PdfInfoPath: pdfinfo, PdfToTextPath: pdftotext}
}

// PageCount returns the number of pages in the PDF via pdfinfo.
func (c *Converter) PageCount(ctx context.Context, pdfPath string) (int, error) {
	cmd := exec.CommandContext(ctx, c.PdfInfoPath, pdfPath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, eris.Wrapf(err, "pdf: pdfinfo failed for %s: %s", pdfPath, stderr.String())
	}

	return parsePageCount(stdout.String())
}

// parsePageCount extracts the "Pages:" line from pdfinfo output.
func parsePageCount(out string) (int, error) {
	for _, line := range strings.Split(out, "\n") {
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:")))
		if err != nil {
			return 0, eris.Wrap(err, "pdf: parse page count")
		}
		return n, nil
	}
	return 0, eris.New("pdf: no Pages line in pdfinfo output")
}

// Rasterize converts up to maxPages pages (0 = all) of the PDF to PNG images
// at the given DPI. Pages are converted concurrently; the temp directory is
// removed on every exit path.
func (c *Converter) Rasterize(ctx context.Context, pdfPath string, dpi, maxPages int) ([]PageImage, error) {
	total, err := c.PageCount(ctx, pdfPath)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, eris.Errorf("pdf: %s has no pages", pdfPath)
	}
	if maxPages > 0 && total > maxPages {
		total = maxPages
	}

	tmpDir, err := os.MkdirTemp("", "proposal-raster-*")
	if err != nil {
		return nil, eris.Wrap(err, "pdf: create temp dir")
	}
	defer os.RemoveAll(tmpDir)

	images := make([]PageImage, total)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(rasterConcurrency)
	for page := 1; page <= total; page++ {
		g.Go(func() error {
			prefix := filepath.Join(tmpDir, fmt.Sprintf("page-%d", page))
			cmd := exec.CommandContext(gCtx, c.PdfToPpmPath,
				"-png",
				"-r", strconv.Itoa(dpi),
				"-f", strconv.Itoa(page),
				"-l", strconv.Itoa(page),
				pdfPath, prefix,
			)
			var stderr bytes.Buffer
			cmd.Stderr = &stderr
			if err := cmd.Run(); err != nil {
				return eris.Wrapf(err, "pdf: pdftoppm page %d: %s", page, stderr.String())
			}

			data, err := readRasterOutput(tmpDir, fmt.Sprintf("page-%d", page))
			if err != nil {
				return err
			}
			images[page-1] = PageImage{
				PageNumber: page,
				MediaType:  "image/png",
				Data:       base64.StdEncoding.EncodeToString(data),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// readRasterOutput finds the single PNG pdftoppm wrote for the prefix.
// pdftoppm zero-pads page numbers depending on document size, so glob
// instead of guessing the exact suffix.
func readRasterOutput(dir, prefix string) ([]byte, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"-*.png"))
	if err != nil || len(matches) == 0 {
		return nil, eris.Errorf("pdf: no raster output for %s", prefix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, eris.Wrapf(err, "pdf: read raster output %s", matches[0])
	}
	return data, nil
}

// ExtractText runs pdftotext -layout on the PDF and returns stdout.
func (c *Converter) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	cmd := exec.CommandContext(ctx, c.PdfToTextPath, "-layout", pdfPath, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "pdf: pdftotext failed for %s: %s", pdfPath, stderr.String())
	}

	return stdout.String(), nil
}

// WriteTemp writes pdfBytes to a temp file and returns its path plus a
// cleanup func. Callers must always invoke cleanup.
func WriteTemp(pdfBytes []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "proposal-doc-*.pdf")
	if err != nil {
		return "", nil, eris.Wrap(err, "pdf: create temp file")
	}
	if _, err := f.Write(pdfBytes); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, eris.Wrap(err, "pdf: write temp file")
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, eris.Wrap(err, "pdf: close temp file")
	}
	path := f.Name()
	return path, func() { os.Remove(path) }, nil
}
