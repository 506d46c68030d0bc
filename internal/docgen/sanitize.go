// Package docgen renders legal documents from per-record DOCX templates.
// Word splits placeholder tokens across adjacent run-level text fragments at
// will; the sanitizer joins those fragments back into contiguous tokens before
// any substitution happens.
package docgen

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// Run-level text fragments inside a part.
	textFragmentRe = regexp.MustCompile(`(<w:t[^>]*>)([^<]*)(</w:t>)`)
	// Template tokens, possibly reassembled from several fragments.
	tokenRe       = regexp.MustCompile(`\{\{.*?\}\}|\{%.*?%\}|\{#.*?#\}`)
	nonWordRe     = regexp.MustCompile(`[^0-9A-Za-z_]+`)
	underscoreRe  = regexp.MustCompile(`_{2,}`)
	foldTransform = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// targetPart reports whether a zip member participates in templating.
func targetPart(name string) bool {
	if name == "word/document.xml" {
		return true
	}
	if !strings.HasSuffix(name, ".xml") {
		return false
	}
	return strings.HasPrefix(name, "word/header") || strings.HasPrefix(name, "word/footer")
}

// NormalizeName canonicalizes a placeholder variable name: NFKD diacritic
// fold, non-word runes to underscores, collapsed repeats, trimmed ends.
// "jkv.vezető" and "jkv_vezeto" both land on "jkv_vezeto".
func NormalizeName(name string) string {
	folded, _, err := transform.String(foldTransform, strings.TrimSpace(name))
	if err != nil {
		folded = name
	}
	folded = nonWordRe.ReplaceAllString(folded, "_")
	folded = underscoreRe.ReplaceAllString(folded, "_")
	return strings.Trim(folded, "_")
}

func normalizeToken(token string) string {
	if strings.HasPrefix(token, "{{") && strings.HasSuffix(token, "}}") {
		inner := token[2 : len(token)-2]
		return "{{" + NormalizeName(inner) + "}}"
	}
	// Control and comment tokens are joined but not renamed.
	return token
}

// sanitizePart makes every template token contiguous within a single text
// fragment and normalizes {{...}} variable names. Fragment boundaries inside a
// token collapse into the fragment where the token starts. Already clean parts
// pass through unchanged.
func sanitizePart(content string) string {
	locs := textFragmentRe.FindAllStringSubmatchIndex(content, -1)
	if len(locs) == 0 {
		return content
	}

	texts := make([]string, len(locs))
	offsets := make([]int, len(locs)+1)
	var joined strings.Builder
	for i, loc := range locs {
		texts[i] = content[loc[4]:loc[5]]
		offsets[i] = joined.Len()
		joined.WriteString(texts[i])
	}
	offsets[len(locs)] = joined.Len()
	virtual := joined.String()

	tokens := tokenRe.FindAllStringIndex(virtual, -1)
	if len(tokens) > 0 {
		rewritten := make([]strings.Builder, len(locs))
		fragAt := func(pos int) int {
			for i := 0; i < len(locs); i++ {
				if pos >= offsets[i] && pos < offsets[i+1] {
					return i
				}
			}
			return len(locs) - 1
		}
		cursor := 0
		for _, tok := range tokens {
			start, end := tok[0], tok[1]
			// Literal text between tokens stays in its own fragments.
			for pos := cursor; pos < start; pos++ {
				rewritten[fragAt(pos)].WriteByte(virtual[pos])
			}
			rewritten[fragAt(start)].WriteString(normalizeToken(virtual[start:end]))
			cursor = end
		}
		for pos := cursor; pos < len(virtual); pos++ {
			rewritten[fragAt(pos)].WriteByte(virtual[pos])
		}
		for i := range texts {
			texts[i] = rewritten[i].String()
		}
	}

	var out strings.Builder
	prev := 0
	for i, loc := range locs {
		out.WriteString(content[prev:loc[4]])
		out.WriteString(texts[i])
		prev = loc[5]
	}
	out.WriteString(content[prev:])
	return out.String()
}

// Sanitize rewrites the document, header and footer parts of a DOCX so that
// every placeholder is contiguous, writing the result to dstPath. Non-target
// parts are copied verbatim.
func Sanitize(srcPath, dstPath string) error {
	reader, err := zip.OpenReader(srcPath)
	if err != nil {
		return fmt.Errorf("open template: %w", err)
	}
	defer reader.Close()

	out, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create sanitized copy: %w", err)
	}
	writer := zip.NewWriter(out)

	for _, member := range reader.File {
		if err := sanitizeMember(writer, member); err != nil {
			writer.Close()
			out.Close()
			os.Remove(dstPath)
			return err
		}
	}
	if err := writer.Close(); err != nil {
		out.Close()
		os.Remove(dstPath)
		return fmt.Errorf("finalize sanitized copy: %w", err)
	}
	return out.Close()
}

func sanitizeMember(writer *zip.Writer, member *zip.File) error {
	src, err := member.Open()
	if err != nil {
		return fmt.Errorf("open part %s: %w", member.Name, err)
	}
	defer src.Close()

	dst, err := writer.CreateHeader(&zip.FileHeader{
		Name:   member.Name,
		Method: member.Method,
	})
	if err != nil {
		return fmt.Errorf("write part %s: %w", member.Name, err)
	}
	if !targetPart(member.Name) {
		_, err = io.Copy(dst, src)
		return err
	}
	raw, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("read part %s: %w", member.Name, err)
	}
	_, err = io.WriteString(dst, sanitizePart(string(raw)))
	return err
}
