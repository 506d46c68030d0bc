// Package safepath is the root-scoped filesystem layer under every upload and
// download. All paths resolve against a configured root; anything escaping the
// root is rejected before any I/O happens.
package safepath

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

type Domain string

const (
	DomainCases          Domain = "cases"
	DomainInvestigations Domain = "investigations"
)

var (
	ErrTraversal     = errors.New("path resolves outside its root")
	ErrForbiddenType = errors.New("forbidden file type")
	ErrTooLarge      = errors.New("file exceeds the size limit")
)

var allowedExtensions = map[Domain]map[string]bool{
	DomainCases: {
		"pdf": true, "jpg": true, "jpeg": true, "png": true,
		"doc": true, "docx": true, "xls": true, "xlsx": true,
	},
	DomainInvestigations: {
		"pdf": true, "jpg": true, "jpeg": true, "png": true,
	},
}

// SanitizeFilename strips directory components and control characters from a
// client-supplied filename.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	name = strings.Trim(name, " .")
	if name == "/" || name == "." {
		return ""
	}
	return name
}

func extensionOf(filename string) string {
	if idx := strings.LastIndex(filename, "."); idx >= 0 {
		return strings.ToLower(filename[idx+1:])
	}
	return ""
}

// AllowedFile reports whether the filename's extension is whitelisted for the
// domain.
func AllowedFile(filename string, domain Domain) bool {
	return allowedExtensions[domain][extensionOf(filename)]
}

// Resolve joins parts under root and verifies the cleaned result stays a
// descendant of root.
func Resolve(root string, parts ...string) (string, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	for _, part := range parts {
		if strings.ContainsRune(part, 0) {
			return "", ErrTraversal
		}
	}
	joined := filepath.Join(append([]string{rootAbs}, parts...)...)
	rel, err := filepath.Rel(rootAbs, joined)
	if err != nil {
		return "", ErrTraversal
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrTraversal
	}
	return joined, nil
}

// GuessMIME is extension-based with an octet-stream fallback; the platforms
// this runs on have no libmagic binding.
func GuessMIME(path string) string {
	if mt := mime.TypeByExtension(filepath.Ext(path)); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

// CheckUpload validates a pending upload: sanitized filename, whitelisted
// extension, declared MIME consistent with the extension, size within bounds.
// It returns the sanitized filename.
func CheckUpload(filename, declaredMIME string, size, limit int64, domain Domain) (string, error) {
	if limit > 0 && size > limit {
		return "", ErrTooLarge
	}
	clean := SanitizeFilename(filename)
	if clean == "" || !AllowedFile(clean, domain) {
		return "", ErrForbiddenType
	}
	expected := mime.TypeByExtension(filepath.Ext(clean))
	if expected != "" && declaredMIME != "" && declaredMIME != "application/octet-stream" {
		declaredBase, _, err := mime.ParseMediaType(declaredMIME)
		if err != nil {
			return "", ErrForbiddenType
		}
		expectedBase, _, _ := mime.ParseMediaType(expected)
		if declaredBase != expectedBase {
			return "", ErrForbiddenType
		}
	}
	return clean, nil
}

// Save streams an upload to {root}/{subdirs...}/{filename}, creating the
// record directory on first use. The filename must already be validated via
// CheckUpload.
func Save(root string, src io.Reader, filename string, subdirs ...string) (string, error) {
	dir, err := Resolve(root, subdirs...)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create record dir: %w", err)
	}
	dest, err := Resolve(root, append(append([]string{}, subdirs...), filename)...)
	if err != nil {
		return "", err
	}
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", filename, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, src); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("write %s: %w", filename, err)
	}
	return dest, nil
}

// Open resolves a stored file for download, returning the handle and its MIME
// type.
func Open(root string, parts ...string) (*os.File, string, error) {
	path, err := Resolve(root, parts...)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	return f, GuessMIME(path), nil
}

// CopyTemplateTree copies the DO-NOT-EDIT template set into a record folder
// once. Existing files are never overwritten, so the copy is idempotent and
// user edits to generated documents survive.
func CopyTemplateTree(sourceDir, recordDir string) error {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read template dir: %w", err)
	}
	targetDir := filepath.Join(recordDir, "DO-NOT-EDIT")
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("create template target: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".docx") {
			continue
		}
		dst := filepath.Join(targetDir, entry.Name())
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		if err := copyFile(filepath.Join(sourceDir, entry.Name()), dst); err != nil {
			return fmt.Errorf("copy template %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
