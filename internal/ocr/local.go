package ocr

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	mimePDF   = "application/pdf"
	mimeDOCX  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimePlain = "text/plain"
)

// LocalClient extracts text in-process. PDF goes through
// github.com/ledongthuc/pdf, DOCX through the OOXML zip payload, plain text
// straight through. Corrupt or unsupported input becomes an unsuccessful
// Result, never a panic.
type LocalClient struct{}

// NewLocalClient constructs a LocalClient.
func NewLocalClient() *LocalClient {
	return &LocalClient{}
}

// ExtractText implements Client.
func (c *LocalClient) ExtractText(ctx context.Context, documentBytes []byte, fileName string) Result {
	if err := ctx.Err(); err != nil {
		return Failure(err)
	}
	if len(documentBytes) == 0 {
		return Failure(errors.New("empty document"))
	}

	mimeType := detectMimeType(documentBytes, fileName)
	switch mimeType {
	case mimePDF:
		text, err := extractPDF(documentBytes)
		if err != nil {
			return Failure(fmt.Errorf("pdf extract: %w", err))
		}
		return Result{Success: true, RawText: text}
	case mimeDOCX:
		text, err := extractDOCX(documentBytes)
		if err != nil {
			return Failure(fmt.Errorf("docx extract: %w", err))
		}
		return Result{Success: true, RawText: text}
	case mimePlain:
		return Result{Success: true, RawText: string(documentBytes)}
	default:
		return Failure(fmt.Errorf("unsupported mime type: %s", mimeType))
	}
}

func detectMimeType(data []byte, fileName string) string {
	sniffed := http.DetectContentType(data)
	clean := strings.ToLower(strings.TrimSpace(strings.Split(sniffed, ";")[0]))

	if clean == "application/zip" {
		if hasZipEntry(data, "word/document.xml") {
			return mimeDOCX
		}
		if strings.EqualFold(filepath.Ext(fileName), ".docx") {
			return mimeDOCX
		}
	}
	if strings.HasPrefix(clean, "text/") {
		return mimePlain
	}
	return clean
}

func extractPDF(data []byte) (string, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	readerAt := bytes.NewReader(data)
	zr, err := zip.NewReader(readerAt, int64(len(data)))
	if err != nil {
		return "", err
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", errors.New("document.xml not found")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return stripDocxXML(string(raw)), nil
}

func stripDocxXML(raw string) string {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return raw
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.WriteString(string(t))
		case xml.EndElement:
			if t.Name.Local == "p" || t.Name.Local == "br" {
				if buf.Len() > 0 {
					buf.WriteString("\n")
				}
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

func hasZipEntry(data []byte, entry string) bool {
	readerAt := bytes.NewReader(data)
	zr, err := zip.NewReader(readerAt, int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == entry {
			return true
		}
	}
	return false
}
