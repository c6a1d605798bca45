package receipt

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
)

// TesseractExtractor runs the tesseract binary over the image
type TesseractExtractor struct {
	binary string
	logger *slog.Logger
}

func NewTesseractExtractor(logger *slog.Logger, binary string) *TesseractExtractor {
	return &TesseractExtractor{binary: binary, logger: logger}
}

func (e *TesseractExtractor) Extract(ctx context.Context, image []byte, categoryNames []string) (Suggestion, error) {
	text, err := e.run(ctx, image)
	if err != nil {
		return Suggestion{}, err
	}
	return ParseText(text, categoryNames)
}

func (e *TesseractExtractor) run(ctx context.Context, image []byte) (string, error) {
	if _, err := os.Stat(e.binary); err != nil {
		return "", fmt.Errorf("tesseract not found at %s: %w", e.binary, err)
	}

	f, err := os.CreateTemp("", "receipt-*")
	if err != nil {
		return "", fmt.Errorf("failed to create receipt temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(image); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write receipt image: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write receipt image: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binary, f.Name(), "stdout", "-l", "eng")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		e.logger.Error("Tesseract failed", "error", err, "stderr", stderr.String())
		return "", fmt.Errorf("tesseract failed: %w: %s", err, stderr.String())
	}
	return stdout.String(), nil
}
