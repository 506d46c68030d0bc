package safepath

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	bad := [][]string{
		{".."},
		{"..", "etc", "passwd"},
		{"sub", "..", "..", "x"},
		{"B-0001-2025", "../../secret"},
	}
	for _, parts := range bad {
		if _, err := Resolve(root, parts...); !errors.Is(err, ErrTraversal) {
			t.Fatalf("Resolve(%v): want ErrTraversal, got %v", parts, err)
		}
	}
}

func TestResolveAcceptsDescendants(t *testing.T) {
	root := t.TempDir()
	got, err := Resolve(root, "B-0001-2025", "report.pdf")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !strings.HasPrefix(got, root) {
		t.Fatalf("resolved path %q escapes root %q", got, root)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":            "report.pdf",
		"../../../etc/passwd":   "passwd",
		`..\..\win\system.docx`: "system.docx",
		"  trailing. ":          "trailing",
		"tab\there.pdf":         "tabhere.pdf",
	}
	for input, want := range cases {
		if got := SanitizeFilename(input); got != want {
			t.Fatalf("SanitizeFilename(%q): want %q got %q", input, want, got)
		}
	}
}

func TestCheckUploadExtensionWhitelist(t *testing.T) {
	if _, err := CheckUpload("notes.exe", "", 10, 1000, DomainCases); !errors.Is(err, ErrForbiddenType) {
		t.Fatalf("exe upload: want ErrForbiddenType got %v", err)
	}
	// doc/docx only allowed on the cases domain.
	if _, err := CheckUpload("report.docx", "", 10, 1000, DomainInvestigations); !errors.Is(err, ErrForbiddenType) {
		t.Fatalf("docx on investigations: want ErrForbiddenType got %v", err)
	}
	if name, err := CheckUpload("report.docx", "", 10, 1000, DomainCases); err != nil || name != "report.docx" {
		t.Fatalf("docx on cases: got %q, %v", name, err)
	}
}

func TestCheckUploadMIMEMismatch(t *testing.T) {
	if _, err := CheckUpload("scan.pdf", "image/png", 10, 1000, DomainCases); !errors.Is(err, ErrForbiddenType) {
		t.Fatalf("mismatched MIME: want ErrForbiddenType got %v", err)
	}
	if _, err := CheckUpload("scan.pdf", "application/pdf", 10, 1000, DomainCases); err != nil {
		t.Fatalf("matching MIME rejected: %v", err)
	}
	if _, err := CheckUpload("scan.pdf", "application/octet-stream", 10, 1000, DomainCases); err != nil {
		t.Fatalf("octet-stream must be tolerated: %v", err)
	}
}

func TestCheckUploadSizeCap(t *testing.T) {
	if _, err := CheckUpload("scan.pdf", "application/pdf", 2000, 1000, DomainCases); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("oversize: want ErrTooLarge got %v", err)
	}
}

func TestSaveAndOpenRoundTrip(t *testing.T) {
	root := t.TempDir()
	dest, err := Save(root, strings.NewReader("pdf-bytes"), "scan.pdf", "B-0001-2025")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Dir(dest) != filepath.Join(root, "B-0001-2025") {
		t.Fatalf("unexpected save location %q", dest)
	}
	f, mimeType, err := Open(root, "B-0001-2025", "scan.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	if mimeType != "application/pdf" {
		t.Fatalf("MIME: want application/pdf got %q", mimeType)
	}
}

func TestCopyTemplateTreeIdempotent(t *testing.T) {
	source := t.TempDir()
	record := t.TempDir()
	if err := os.WriteFile(filepath.Join(source, "cert.docx"), []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyTemplateTree(source, record); err != nil {
		t.Fatalf("first copy: %v", err)
	}
	// Record-local edits must survive a second copy.
	target := filepath.Join(record, "DO-NOT-EDIT", "cert.docx")
	if err := os.WriteFile(target, []byte("edited"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyTemplateTree(source, record); err != nil {
		t.Fatalf("second copy: %v", err)
	}
	raw, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "edited" {
		t.Fatalf("template copy overwrote an existing file: %q", raw)
	}
}

func TestCopyTemplateTreeMissingSourceIsNoop(t *testing.T) {
	if err := CopyTemplateTree(filepath.Join(t.TempDir(), "absent"), t.TempDir()); err != nil {
		t.Fatalf("missing source should be a no-op, got %v", err)
	}
}
