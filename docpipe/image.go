package docpipe

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// extractImage records the image header and runs OCR.
func (p *Pipeline) extractImage(ctx context.Context, path string, doc *Document) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	cfg, name, err := image.DecodeConfig(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("decode image header: %w", err)
	}
	doc.Metadata["format"] = strings.ToUpper(name)
	doc.Metadata["mode"] = colorMode(cfg.ColorModel)
	doc.Metadata["width"] = cfg.Width
	doc.Metadata["height"] = cfg.Height
	doc.Metadata["size"] = []int{cfg.Width, cfg.Height}

	res, err := p.cfg.OCR.Recognize(ctx, path)
	if err != nil {
		return err
	}
	doc.Method = p.cfg.OCR.Name()
	doc.RawText = res.Text
	doc.OCRConfidence = res.Confidence
	doc.LineCount = len(strings.Split(strings.TrimRight(res.Text, "\n"), "\n"))
	return nil
}

// colorMode names a colour model the way image tools usually report it.
func colorMode(m color.Model) string {
	if _, ok := m.(color.Palette); ok {
		return "P"
	}
	switch m {
	case color.GrayModel:
		return "L"
	case color.Gray16Model:
		return "I;16"
	case color.YCbCrModel:
		return "RGB"
	case color.CMYKModel:
		return "CMYK"
	case color.RGBAModel, color.NRGBAModel, color.RGBA64Model, color.NRGBA64Model:
		return "RGBA"
	default:
		return "unknown"
	}
}
