package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

const sampleDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>1. Payment</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Buyer shall pay </w:t></w:r><w:r><w:t>USD 100,000.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Net</w:t><w:tab/><w:t>30</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestBytes_Docx(t *testing.T) {
	got, err := Bytes("contract.DOCX", buildDocx(t, sampleDocumentXML))
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	want := "1. Payment\nBuyer shall pay USD 100,000.\nNet\t30"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBytes_DocxMissingDocument(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if _, err := zw.Create("other.xml"); err != nil {
		t.Fatal(err)
	}
	zw.Close()
	if _, err := Bytes("c.docx", buf.Bytes()); err == nil {
		t.Error("expected error when word/document.xml is absent")
	}
}

func TestBytes_InvalidDocx(t *testing.T) {
	if _, err := Bytes("c.docx", []byte("not a zip")); err == nil {
		t.Error("expected error for invalid DOCX")
	}
}

func TestBytes_InvalidPDF(t *testing.T) {
	if _, err := Bytes("c.pdf", []byte("not a pdf file")); err == nil {
		t.Error("expected error for invalid PDF content")
	}
}

func TestBytes_TextDropsInvalidUTF8(t *testing.T) {
	got, err := Bytes("c.txt", []byte("Clause \xff1"))
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if got != "Clause 1" {
		t.Errorf("got %q", got)
	}
}

func TestBytes_Empty(t *testing.T) {
	if _, err := Bytes("c.txt", []byte("  \n")); !errors.Is(err, ErrNoText) {
		t.Errorf("expected ErrNoText, got %v", err)
	}
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contract.txt")
	if err := os.WriteFile(path, []byte("Buyer shall pay."), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := File(path)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if got != "Buyer shall pay." {
		t.Errorf("got %q", got)
	}
	if _, err := File(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
