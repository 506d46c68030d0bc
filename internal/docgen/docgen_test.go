package docgen

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const docHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><w:document><w:body>`
const docFooter = `</w:body></w:document>`

func runs(texts ...string) string {
	var b strings.Builder
	b.WriteString("<w:p>")
	for _, t := range texts {
		b.WriteString(`<w:r><w:t xml:space="preserve">`)
		b.WriteString(t)
		b.WriteString(`</w:t></w:r>`)
	}
	b.WriteString("</w:p>")
	return b.String()
}

func writeDocx(t *testing.T, path, documentXML string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, content := range map[string]string{
		"[Content_Types].xml": `<Types/>`,
		"word/document.xml":   docHeader + documentXML + docFooter,
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func readPart(t *testing.T, path, part string) string {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	for _, member := range r.File {
		if member.Name != part {
			continue
		}
		src, err := member.Open()
		if err != nil {
			t.Fatal(err)
		}
		defer src.Close()
		var b strings.Builder
		buf := make([]byte, 4096)
		for {
			n, err := src.Read(buf)
			b.Write(buf[:n])
			if err != nil {
				break
			}
		}
		return b.String()
	}
	t.Fatalf("part %s not found in %s", part, path)
	return ""
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"jkv.vezető":    "jkv_vezeto",
		"kulso ugyirat": "kulso_ugyirat",
		"  titulus  ":   "titulus",
		"vizsg__date":   "vizsg_date",
		"_x_":           "x",
	}
	for input, want := range cases {
		if got := NormalizeName(input); got != want {
			t.Fatalf("NormalizeName(%q): want %q got %q", input, want, got)
		}
	}
}

func TestSanitizeJoinsSplitPlaceholders(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tpl.docx")
	dst := filepath.Join(dir, "tpl-clean.docx")
	writeDocx(t, src, runs("{{ti", "tul", "us}}")+runs("{{viz", "sg_", "date}}"))

	if err := Sanitize(src, dst); err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	doc := readPart(t, dst, "word/document.xml")
	if !strings.Contains(doc, "{{titulus}}") {
		t.Fatalf("split placeholder not joined: %s", doc)
	}
	if !strings.Contains(doc, "{{vizsg_date}}") {
		t.Fatalf("second placeholder not joined: %s", doc)
	}
}

func TestSanitizeSpansParagraphBoundary(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tpl.docx")
	dst := filepath.Join(dir, "tpl-clean.docx")
	writeDocx(t, src, runs("before {{tit")+runs("ulus}} after"))

	if err := Sanitize(src, dst); err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	doc := readPart(t, dst, "word/document.xml")
	if !strings.Contains(doc, "{{titulus}}") {
		t.Fatalf("paragraph-spanning placeholder not joined: %s", doc)
	}
	if !strings.Contains(doc, "before ") || !strings.Contains(doc, " after") {
		t.Fatalf("literal text around the token was lost: %s", doc)
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tpl.docx")
	once := filepath.Join(dir, "once.docx")
	twice := filepath.Join(dir, "twice.docx")
	writeDocx(t, src, runs("Dear {{tit", "ulus}},")+runs("plain text"))

	if err := Sanitize(src, once); err != nil {
		t.Fatalf("first sanitize: %v", err)
	}
	if err := Sanitize(once, twice); err != nil {
		t.Fatalf("second sanitize: %v", err)
	}
	if readPart(t, once, "word/document.xml") != readPart(t, twice, "word/document.xml") {
		t.Fatal("sanitize is not idempotent")
	}
}

func TestSanitizeNormalizesFoldedNames(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tpl.docx")
	dst := filepath.Join(dir, "clean.docx")
	writeDocx(t, src, runs("{{jkv.vezető}}"))

	if err := Sanitize(src, dst); err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	if !strings.Contains(readPart(t, dst, "word/document.xml"), "{{jkv_vezeto}}") {
		t.Fatal("variable name was not folded")
	}
}

func TestRenderSubstitutesSplitPlaceholders(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tpl.docx")
	out := filepath.Join(dir, "out.docx")
	writeDocx(t, src, runs("{{ti", "tul", "us}}")+runs("{{viz", "sg_", "date}}"))

	err := Render(src, out, map[string]interface{}{
		"titulus":    "Dr.",
		"vizsg_date": "2025-09-24 10:30",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	doc := readPart(t, out, "word/document.xml")
	if !strings.Contains(doc, "Dr.") {
		t.Fatalf("titulus not substituted: %s", doc)
	}
	if !strings.Contains(doc, "2025-09-24 10:30") {
		t.Fatalf("vizsg_date not substituted: %s", doc)
	}
	if strings.Contains(doc, "{{") {
		t.Fatalf("residual placeholder in output: %s", doc)
	}
}

func TestRenderNilValueBecomesEmpty(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tpl.docx")
	out := filepath.Join(dir, "out.docx")
	writeDocx(t, src, runs("[{{intezmeny}}]"))

	if err := Render(src, out, map[string]interface{}{"intezmeny": nil}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(readPart(t, out, "word/document.xml"), "[]") {
		t.Fatal("nil value should render as empty string")
	}
}

func TestRenderAliasedContextKeys(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tpl.docx")
	out := filepath.Join(dir, "out.docx")
	writeDocx(t, src, runs("{{kulso_ugyirat}}"))

	if err := Render(src, out, map[string]interface{}{"kulso ugyirat": "K-123/2025"}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(readPart(t, out, "word/document.xml"), "K-123/2025") {
		t.Fatal("space-named key alias did not resolve")
	}
}

func TestRenderEscapesXML(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tpl.docx")
	out := filepath.Join(dir, "out.docx")
	writeDocx(t, src, runs("{{intezmeny}}"))

	if err := Render(src, out, map[string]interface{}{"intezmeny": "A < B & C"}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(readPart(t, out, "word/document.xml"), "A &lt; B &amp; C") {
		t.Fatal("value was not XML-escaped")
	}
}
