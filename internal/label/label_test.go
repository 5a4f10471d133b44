package label

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/shopspring/decimal"
)

func TestBarcodePNG(t *testing.T) {
	data, err := BarcodePNG("8690000000015")
	if err != nil {
		t.Fatalf("render barcode: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a valid PNG: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 600 || bounds.Dy() != 200 {
		t.Fatalf("expected 600x200 image, got %dx%d", bounds.Dx(), bounds.Dy())
	}

	if _, err := BarcodePNG(""); err == nil {
		t.Fatalf("expected error for empty code")
	}
}

func TestPDFLabel(t *testing.T) {
	data, err := PDF("8690000000015", "Çay 1kg", decimal.RequireFromString("185.00"))
	if err != nil {
		t.Fatalf("render label: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected non-empty PDF")
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("output does not look like a PDF")
	}
}

func TestPDFLabelTruncatesLongTitles(t *testing.T) {
	long := "Çok Uzun Bir Ürün Adı Bu Etikete Sığmaz Ama Yine De Denenir"
	data, err := PDF("8690000000022", long, decimal.RequireFromString("9.99"))
	if err != nil {
		t.Fatalf("render label: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected non-empty PDF")
	}
}
