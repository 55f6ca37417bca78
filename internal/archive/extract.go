// Package archive turns an uploaded byte stream (a ZIP bundle or a single
// HTML document) into files under an isolated destination directory.
//
// Extraction is defensive: entry names are checked for parent-directory
// segments before any path math, the joined path is verified to stay inside
// the destination, and a cumulative uncompressed-size ceiling is enforced
// before each write. Any failure removes the destination directory so no
// partial extraction survives.
package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/sitehive/sitehive-backend/internal/storage"
)

// DefaultEntryFile is the landing page looked for in every bundle. It is kept
// as the recorded entry even when the bundle does not contain one, so a
// bad upload fails at serve time with a diagnosable 404 instead of being
// rejected here.
const DefaultEntryFile = "index.html"

// Upload is the raw uploaded file as received from the HTTP layer.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Result reports what an extraction produced.
type Result struct {
	// EntryFile is the site's landing page, relative to the destination,
	// always slash-separated.
	EntryFile string
	// TotalBytes is the cumulative size of all files written.
	TotalBytes int64
}

// IsZip reports whether the upload should be treated as a ZIP archive, by
// declared content type or filename suffix.
func IsZip(u Upload) bool {
	switch u.ContentType {
	case "application/zip", "application/x-zip-compressed":
		return true
	}
	return strings.HasSuffix(strings.ToLower(u.Filename), ".zip")
}

// Extract validates the upload and writes its contents under destDir.
//
// ZIP uploads are unpacked entry by entry. Single-file uploads must declare
// text/html (an .html suffix alone is not trusted) and are stored as
// index.html. On any error destDir is removed before the error is returned.
func Extract(u Upload, destDir string, maxTotalBytes int64) (Result, error) {
	res, err := extract(u, destDir, maxTotalBytes)
	if err != nil {
		os.RemoveAll(destDir)
		return Result{}, err
	}
	return res, nil
}

func extract(u Upload, destDir string, maxTotalBytes int64) (Result, error) {
	if IsZip(u) {
		return extractZip(u.Data, destDir, maxTotalBytes)
	}

	// Strict content-type check for single files: an .html extension on a
	// spoofed content type is the cheapest attack vector here.
	mime := u.ContentType
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if mime != "text/html" {
		return Result{}, &Error{Kind: KindUnsupported}
	}

	if int64(len(u.Data)) > maxTotalBytes {
		return Result{}, &Error{Kind: KindQuotaExceeded}
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Result{}, &Error{Kind: KindIO, Err: err}
	}
	if err := os.WriteFile(filepath.Join(destDir, DefaultEntryFile), u.Data, 0o644); err != nil {
		return Result{}, &Error{Kind: KindIO, Err: err}
	}
	return Result{EntryFile: DefaultEntryFile, TotalBytes: int64(len(u.Data))}, nil
}

func extractZip(data []byte, destDir string, maxTotalBytes int64) (Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, &Error{Kind: KindCorrupt, Err: err}
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Result{}, &Error{Kind: KindIO, Err: err}
	}

	// First pass: decode every name and refuse parent-directory segments
	// before a single path is joined.
	names := make([]string, len(zr.File))
	for i, f := range zr.File {
		name := decodeName(f)
		if storage.HasDotDot(name) {
			return Result{}, &Error{Kind: KindMalicious, Entry: name}
		}
		names[i] = name
	}

	var total int64
	for i, f := range zr.File {
		name := names[i]

		// Second, authoritative defense: the joined absolute path must stay
		// under the destination. Catches absolute names, drive letters and
		// separator tricks the segment check cannot see.
		target, err := storage.ResolveWithinRoot(destDir, name)
		if err != nil {
			return Result{}, &Error{Kind: KindMalicious, Entry: name, Err: err}
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return Result{}, &Error{Kind: KindIO, Entry: name, Err: err}
			}
			continue
		}

		// Check the declared size before writing the offending entry, then
		// meter the actual bytes in case the header lies.
		if total+int64(f.UncompressedSize64) > maxTotalBytes {
			return Result{}, &Error{Kind: KindQuotaExceeded, Entry: name}
		}

		// Entries are not guaranteed to be sorted or preceded by their
		// directory entries.
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return Result{}, &Error{Kind: KindIO, Entry: name, Err: err}
		}

		n, err := writeEntry(f, target, maxTotalBytes-total)
		total += n
		if err != nil {
			return Result{}, err
		}
	}

	entry, err := findEntryFile(destDir)
	if err != nil {
		return Result{}, &Error{Kind: KindIO, Err: err}
	}
	return Result{EntryFile: entry, TotalBytes: total}, nil
}

func writeEntry(f *zip.File, target string, budget int64) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, &Error{Kind: KindCorrupt, Entry: f.Name, Err: err}
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, &Error{Kind: KindIO, Entry: f.Name, Err: err}
	}
	defer out.Close()

	n, err := io.Copy(out, io.LimitReader(rc, budget+1))
	if err != nil {
		return n, &Error{Kind: KindIO, Entry: f.Name, Err: err}
	}
	if n > budget {
		return n, &Error{Kind: KindQuotaExceeded, Entry: f.Name}
	}
	return n, nil
}

// decodeName returns the entry name, re-decoding the raw bytes as GBK when
// the archive did not set the UTF-8 flag. ZIPs produced by Windows tools in a
// Chinese locale store names this way; a failed decode falls back to the raw
// name.
func decodeName(f *zip.File) string {
	if !f.NonUTF8 {
		return f.Name
	}
	decoded, err := simplifiedchinese.GBK.NewDecoder().String(f.Name)
	if err != nil {
		return f.Name
	}
	return decoded
}

// findEntryFile resolves the bundle's landing page: index.html at the root if
// present, otherwise the shallowest index.html anywhere in the tree (ties
// broken lexicographically), otherwise the default name as a deliberate
// fail-at-serve-time fallback.
func findEntryFile(destDir string) (string, error) {
	if _, err := os.Stat(filepath.Join(destDir, DefaultEntryFile)); err == nil {
		return DefaultEntryFile, nil
	}

	// Iterative breadth-first walk: deterministic shallowest match and no
	// stack growth on deeply nested bundles.
	queue := []string{""}
	for len(queue) > 0 {
		rel := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(filepath.Join(destDir, filepath.FromSlash(rel)))
		if err != nil {
			return "", err
		}
		for _, e := range entries {
			if !e.IsDir() && e.Name() == DefaultEntryFile {
				return path.Join(rel, DefaultEntryFile), nil
			}
		}
		for _, e := range entries {
			if e.IsDir() {
				queue = append(queue, path.Join(rel, e.Name()))
			}
		}
	}

	return DefaultEntryFile, nil
}
