package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strings"
)

// Engine recognizes text in an image.
type Engine interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// Tesseract runs the tesseract binary, piping a PNG through stdin and
// reading text from stdout.
type Tesseract struct {
	path string
	args []string
}

// NewTesseract creates an engine for the binary at path. args are extra
// command line options such as "--oem 3 --psm 4".
func NewTesseract(path string, args []string) *Tesseract {
	if path == "" {
		path = "tesseract"
	}
	return &Tesseract{path: path, args: args}
}

// Available reports whether the binary can be found.
func (t *Tesseract) Available() bool {
	_, err := exec.LookPath(t.path)
	return err == nil
}

// Recognize implements Engine.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (string, error) {
	var in bytes.Buffer
	if err := png.Encode(&in, img); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	args := append([]string{"stdin", "stdout", "-l", "eng"}, t.args...)
	cmd := exec.CommandContext(ctx, t.path, args...)
	cmd.Stdin = &in
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out.String(), nil
}
