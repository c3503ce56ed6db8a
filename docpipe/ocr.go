package docpipe

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// OCRResult is recognised text with the mean word confidence (0-100).
type OCRResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// OCR reads text from an image file.
type OCR interface {
	Name() string
	Recognize(ctx context.Context, path string) (OCRResult, error)
}

// Tesseract runs the tesseract command line tool.
type Tesseract struct {
	Binary string   // default "tesseract"
	Args   []string // default --oem 3 --psm 6
	Lang   string   // passed as -l when set
}

// NewTesseract returns the engine with LSTM + legacy mode and a single
// uniform text block layout.
func NewTesseract() *Tesseract {
	return &Tesseract{Binary: "tesseract", Args: []string{"--oem", "3", "--psm", "6"}}
}

func (t *Tesseract) Name() string { return "tesseract" }

// Available reports whether the binary is on PATH.
func (t *Tesseract) Available() bool {
	_, err := exec.LookPath(t.Binary)
	return err == nil
}

// Recognize runs two passes: plain text, then TSV for the confidences.
// A failing TSV pass leaves Confidence at 0.
func (t *Tesseract) Recognize(ctx context.Context, path string) (OCRResult, error) {
	bin, err := exec.LookPath(t.Binary)
	if err != nil {
		return OCRResult{}, fmt.Errorf("%w: %v", ErrOCRUnavailable, err)
	}
	text, err := t.run(ctx, bin, path)
	if err != nil {
		return OCRResult{}, err
	}
	res := OCRResult{Text: string(text)}
	if tsv, err := t.run(ctx, bin, path, "tsv"); err == nil {
		res.Confidence = meanConfidence(tsv)
	}
	return res, nil
}

func (t *Tesseract) run(ctx context.Context, bin, path string, extra ...string) ([]byte, error) {
	args := []string{path, "stdout"}
	if t.Lang != "" {
		args = append(args, "-l", t.Lang)
	}
	args = append(args, t.Args...)
	args = append(args, extra...)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("tesseract: %s", strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("tesseract: %w", err)
	}
	return out, nil
}

// meanConfidence averages the positive values of the "conf" column of
// tesseract TSV output.
func meanConfidence(tsv []byte) float64 {
	sc := bufio.NewScanner(bytes.NewReader(tsv))
	col := -1
	var sum float64
	var n int
	for sc.Scan() {
		fields := strings.Split(sc.Text(), "\t")
		if col < 0 {
			for i, f := range fields {
				if f == "conf" {
					col = i
				}
			}
			if col < 0 {
				return 0
			}
			continue
		}
		if col >= len(fields) {
			continue
		}
		c, err := strconv.ParseFloat(strings.TrimSpace(fields[col]), 64)
		if err == nil && c > 0 {
			sum += c
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
