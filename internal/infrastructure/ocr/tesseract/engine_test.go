package tesseract

import (
	"context"
	"errors"
	"image/png"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/kirillkom/filing-assembler/internal/pdftest"
)

type call struct {
	name string
	args []string
}

type stubRunner struct {
	calls       []call
	tesseract   string
	fail        string
	renderPages bool
	seenWidth   int
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.calls = append(s.calls, call{name: name, args: args})
	if name == s.fail {
		return nil, []byte("boom"), errors.New("exit status 1")
	}
	switch name {
	case "pdftoppm":
		if s.renderPages {
			prefix := args[len(args)-1]
			if err := os.WriteFile(prefix+".png", pdftest.PNG(4, 4), 0o600); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	case "tesseract":
		if f, err := os.Open(args[0]); err == nil {
			if cfg, err := png.DecodeConfig(f); err == nil {
				s.seenWidth = cfg.Width
			}
			_ = f.Close()
		}
		return []byte(s.tesseract), nil, nil
	}
	return nil, nil, errors.New("unexpected binary " + name)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func found(string) (string, error) { return "/usr/bin/x", nil }

func TestRecognizePDFPageRastersRequestedPage(t *testing.T) {
	runner := &stubRunner{tesseract: "NOTICE  OF\tAPPEAL\r\n\r\n\r\n\r\nline two  ", renderPages: true}
	e := NewWithRunner(Config{}, runner, found, quietLogger())

	text, err := e.RecognizePDFPage(context.Background(), pdftest.TextPDF("", ""), 2)
	if err != nil {
		t.Fatalf("RecognizePDFPage() error = %v", err)
	}
	if text != "NOTICE OF APPEAL\n\nline two" {
		t.Fatalf("unexpected normalized text %q", text)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("expected pdftoppm and tesseract calls, got %+v", runner.calls)
	}
	raster := strings.Join(runner.calls[0].args, " ")
	if !strings.HasPrefix(raster, "-r 144 -f 2 -l 2 -png -singlefile ") {
		t.Fatalf("unexpected pdftoppm args %q", raster)
	}
	ocrArgs := runner.calls[1].args
	if ocrArgs[1] != "stdout" || ocrArgs[2] != "-l" || ocrArgs[3] != "eng" {
		t.Fatalf("unexpected tesseract args %v", ocrArgs)
	}
}

func TestRecognizePDFPageMissingRaster(t *testing.T) {
	runner := &stubRunner{}
	e := NewWithRunner(Config{}, runner, found, quietLogger())
	if _, err := e.RecognizePDFPage(context.Background(), pdftest.TextPDF(""), 1); err == nil {
		t.Fatalf("expected error when pdftoppm writes nothing")
	}
}

func TestRecognizeImageUpscalesTwice(t *testing.T) {
	runner := &stubRunner{tesseract: "passport"}
	e := NewWithRunner(Config{Lang: "eng+fra"}, runner, found, quietLogger())

	text, err := e.RecognizeImage(context.Background(), pdftest.PNG(5, 3))
	if err != nil {
		t.Fatalf("RecognizeImage() error = %v", err)
	}
	if text != "passport" {
		t.Fatalf("unexpected text %q", text)
	}
	if runner.seenWidth != 10 {
		t.Fatalf("expected 2x raster width 10, got %d", runner.seenWidth)
	}
	if runner.calls[0].args[3] != "eng+fra" {
		t.Fatalf("expected configured language, got %v", runner.calls[0].args)
	}
}

func TestRecognizeErrorsPropagate(t *testing.T) {
	runner := &stubRunner{fail: "tesseract"}
	e := NewWithRunner(Config{}, runner, found, quietLogger())
	if _, err := e.RecognizeImage(context.Background(), pdftest.PNG(2, 2)); err == nil {
		t.Fatalf("expected tesseract failure")
	}
	if _, err := e.RecognizeImage(context.Background(), []byte("not an image")); err == nil {
		t.Fatalf("expected decode failure")
	}
}

func TestAvailable(t *testing.T) {
	missing := func(name string) (string, error) {
		if name == "pdftoppm" {
			return "", errors.New("not found")
		}
		return "/usr/bin/" + name, nil
	}
	if NewWithRunner(Config{}, &stubRunner{}, missing, quietLogger()).Available() {
		t.Fatalf("expected unavailable without pdftoppm")
	}
	if !NewWithRunner(Config{}, &stubRunner{}, found, quietLogger()).Available() {
		t.Fatalf("expected available")
	}
}

func TestNormalize(t *testing.T) {
	in := "Header\r\n-----\r\nA\t\tB   C  \n\n\n\n\fD"
	if got := Normalize(in); got != "Header\n\nA B C\n\nD" {
		t.Fatalf("Normalize() = %q", got)
	}
}
