// Package tesseract recognizes page text with the tesseract CLI, rasterizing
// PDF pages with pdftoppm first.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

const defaultDPI = 144

type Config struct {
	Tesseract   string
	Pdftoppm    string
	Lang        string
	TessdataDir string
	// DPI rasterizes PDF pages; 144 is a 2x raster of the 72 dpi page space.
	DPI int
}

type Engine struct {
	cfg      Config
	runner   Runner
	lookPath func(string) (string, error)
	logger   *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return NewWithRunner(cfg, execRunner{logger: logger}, exec.LookPath, logger)
}

func NewWithRunner(cfg Config, runner Runner, lookPath func(string) (string, error), logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = defaultDPI
	}
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	return &Engine{cfg: cfg, runner: runner, lookPath: lookPath, logger: logger}
}

// Available reports whether both binaries resolve on PATH.
func (e *Engine) Available() bool {
	for _, bin := range []string{e.cfg.Tesseract, e.cfg.Pdftoppm} {
		if _, err := e.lookPath(bin); err != nil {
			e.logger.Debug("ocr binary not found", "binary", bin, "error", err)
			return false
		}
	}
	return true
}

func (e *Engine) RecognizePDFPage(ctx context.Context, pdf []byte, pageNumber int) (string, error) {
	if pageNumber <= 0 {
		return "", fmt.Errorf("invalid page number %d", pageNumber)
	}
	dir, err := os.MkdirTemp("", "fa-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer e.cleanup(dir)

	in := filepath.Join(dir, "source.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}

	prefix := filepath.Join(dir, "page")
	page := strconv.Itoa(pageNumber)
	// pdftoppm -r <dpi> -f N -l N -png -singlefile <in.pdf> <prefix>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm,
		"-r", strconv.Itoa(e.cfg.DPI), "-f", page, "-l", page, "-png", "-singlefile", in, prefix)
	if err != nil {
		return "", fmt.Errorf("pdftoppm page %d: %w: %s", pageNumber, err, truncate(string(errb), 512))
	}
	raster := prefix + ".png"
	if _, err := os.Stat(raster); err != nil {
		return "", fmt.Errorf("pdftoppm produced no image for page %d: %w", pageNumber, err)
	}
	return e.tesseract(ctx, raster)
}

// RecognizeImage upscales the image 2x before recognition.
func (e *Engine) RecognizeImage(ctx context.Context, raw []byte) (string, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx()*2, bounds.Dy()*2))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)

	dir, err := os.MkdirTemp("", "fa-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer e.cleanup(dir)

	path := filepath.Join(dir, "image.png")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create raster: %w", err)
	}
	if err := png.Encode(f, dst); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("encode raster: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close raster: %w", err)
	}
	return e.tesseract(ctx, path)
}

func (e *Engine) tesseract(ctx context.Context, path string) (string, error) {
	args := []string{path, "stdout", "-l", e.cfg.Lang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	return Normalize(string(out)), nil
}

func (e *Engine) cleanup(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		e.logger.Warn("remove ocr temp dir", "dir", dir, "error", err)
	}
}
