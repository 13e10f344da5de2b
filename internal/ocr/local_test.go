package ocr

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestExtractTextPlain(t *testing.T) {
	client := NewLocalClient()
	result := client.ExtractText(context.Background(), []byte("Name: Rahul Sharma\nIIT Delhi"), "certificate.txt")
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if !strings.Contains(result.RawText, "Rahul Sharma") {
		t.Fatalf("raw text = %q", result.RawText)
	}
}

func TestExtractTextEmptyDocument(t *testing.T) {
	client := NewLocalClient()
	result := client.ExtractText(context.Background(), nil, "certificate.txt")
	if result.Success {
		t.Fatal("expected failure on empty document")
	}
	if result.Error == "" {
		t.Fatal("expected an error message")
	}
}

func TestExtractTextCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewLocalClient()
	result := client.ExtractText(ctx, []byte("some text"), "certificate.txt")
	if result.Success {
		t.Fatal("expected failure with cancelled context")
	}
}

func TestExtractTextDocx(t *testing.T) {
	document := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Name: Priya Patel</w:t></w:r></w:p>
    <w:p><w:r><w:t>Delhi University</w:t></w:r></w:p>
  </w:body>
</w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := f.Write([]byte(document)); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	client := NewLocalClient()
	result := client.ExtractText(context.Background(), buf.Bytes(), "certificate.docx")
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if !strings.Contains(result.RawText, "Priya Patel") || !strings.Contains(result.RawText, "Delhi University") {
		t.Fatalf("raw text = %q", result.RawText)
	}
}

func TestExtractTextUnsupportedFormat(t *testing.T) {
	client := NewLocalClient()
	// A PNG header is neither a PDF, a DOCX, nor plain text.
	result := client.ExtractText(context.Background(), []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x00"), "scan.png")
	if result.Success {
		t.Fatal("expected failure for unsupported format")
	}
}
