// Package corpus inventories a directory tree of contract documents for batch
// analysis. It classifies files by extension and records why the rest were
// skipped; it does not read document content.
package corpus

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Formats reported in Document.Format.
const (
	FormatPDF  = "pdf"
	FormatDOCX = "docx"
	FormatText = "text"
)

// MaxFileSize is the largest document Build will list.
const MaxFileSize = 25 << 20

// maxSummaryBytes bounds Summary output.
const maxSummaryBytes = 16_000

// Document is one analyzable file.
type Document struct {
	Path   string // relative to the corpus root, slash separated
	Format string
	Size   int64
}

// Skipped is a file Build saw but will not analyze.
type Skipped struct {
	Path   string
	Reason string
}

// Index is the inventory of a corpus root.
type Index struct {
	Root      string
	Documents []Document
	Skipped   []Skipped
}

// defaultIgnore lists directory base names that are never descended into.
var defaultIgnore = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__MACOSX":     true,
}

// formatOf returns the document format for name, or "" when unsupported.
func formatOf(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	case ".txt", ".text", ".md":
		return FormatText
	default:
		return ""
	}
}

// isNoise reports files that are skipped without a Skipped entry: dotfiles
// and office lock files.
func isNoise(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$")
}

// Build walks root and lists every supported document. ignoreDirs
// supplements the default ignore list and is matched against directory base
// names. Results are sorted by path.
func Build(root string, ignoreDirs []string) (Index, error) {
	extra := make(map[string]bool, len(ignoreDirs))
	for _, d := range ignoreDirs {
		extra[d] = true
	}

	idx := Index{Root: root}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (defaultIgnore[d.Name()] || extra[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || isNoise(d.Name()) {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		format := formatOf(d.Name())
		if format == "" {
			idx.Skipped = append(idx.Skipped, Skipped{Path: rel, Reason: "unsupported format"})
			return nil
		}
		info, infoErr := d.Info()
		switch {
		case infoErr != nil:
			idx.Skipped = append(idx.Skipped, Skipped{Path: rel, Reason: infoErr.Error()})
		case info.Size() == 0:
			idx.Skipped = append(idx.Skipped, Skipped{Path: rel, Reason: "empty file"})
		case info.Size() > MaxFileSize:
			idx.Skipped = append(idx.Skipped, Skipped{Path: rel, Reason: fmt.Sprintf("larger than %d bytes", MaxFileSize)})
		default:
			idx.Documents = append(idx.Documents, Document{Path: rel, Format: format, Size: info.Size()})
		}
		return nil
	})
	if err != nil {
		return Index{}, fmt.Errorf("corpus: walk %s: %w", root, err)
	}

	sort.Slice(idx.Documents, func(i, j int) bool { return idx.Documents[i].Path < idx.Documents[j].Path })
	sort.Slice(idx.Skipped, func(i, j int) bool { return idx.Skipped[i].Path < idx.Skipped[j].Path })
	return idx, nil
}

// Abs returns the filesystem path of doc.
func (idx Index) Abs(doc Document) string {
	return filepath.Join(idx.Root, filepath.FromSlash(doc.Path))
}

// Summary lists documents and skipped files. Output beyond maxSummaryBytes
// is replaced by a count of omitted lines.
func (idx Index) Summary() string {
	var lines []string
	lines = append(lines, fmt.Sprintf("=== Documents (%d) ===", len(idx.Documents)))
	for _, d := range idx.Documents {
		lines = append(lines, fmt.Sprintf("  %s (%s, %d bytes)", d.Path, d.Format, d.Size))
	}
	if len(idx.Skipped) > 0 {
		lines = append(lines, fmt.Sprintf("=== Skipped (%d) ===", len(idx.Skipped)))
		for _, s := range idx.Skipped {
			lines = append(lines, fmt.Sprintf("  %s: %s", s.Path, s.Reason))
		}
	}

	var sb strings.Builder
	const notice = "[TRUNCATED: %d lines omitted]\n"
	for i, l := range lines {
		if sb.Len()+len(l)+1 > maxSummaryBytes-len(notice)-10 {
			fmt.Fprintf(&sb, notice, len(lines)-i)
			break
		}
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	return sb.String()
}
