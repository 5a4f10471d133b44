package label

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

// Label geometry mirrors the physical tags the shop prints: A7 landscape,
// title at the top, price under it, a wide Code128 strip, and the
// human-readable code along the bottom edge.
const (
	pageW      = 105.0 // mm, A7 landscape
	pageH      = 74.0
	marginLeft = 8.0
	titleMax   = 22
)

// BarcodePNG renders a Code128 barcode for the given code as a PNG.
func BarcodePNG(code string) ([]byte, error) {
	if code == "" {
		return nil, fmt.Errorf("barcode code is empty")
	}

	bc, err := code128.Encode(code)
	if err != nil {
		return nil, fmt.Errorf("encode code128: %w", err)
	}
	scaled, err := barcode.Scale(bc, 600, 200)
	if err != nil {
		return nil, fmt.Errorf("scale barcode: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// PDF renders a single product label as a one-page PDF.
func PDF(code string, title string, price decimal.Decimal) ([]byte, error) {
	pngData, err := BarcodePNG(code)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "mm",
		Size:    gofpdf.SizeType{Wd: pageW, Ht: pageH},
	})
	translate := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	if runes := []rune(title); len(runes) > titleMax {
		title = string(runes[:titleMax])
	}

	y := 10.0
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Text(marginLeft, y, translate(title))

	y += 7
	pdf.SetFont("Helvetica", "", 11)
	pdf.Text(marginLeft, y, fmt.Sprintf("%s TL", price.StringFixed(2)))

	pdf.RegisterImageOptionsReader("barcode", gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(pngData))
	pdf.ImageOptions("barcode", marginLeft, y+4, 60, 20, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.Text(marginLeft, pageH-6, code)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render label pdf: %w", err)
	}
	return buf.Bytes(), nil
}
