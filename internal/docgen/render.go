package docgen

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// BuildContext flattens caller-supplied values into the substitution map.
// Nil values become empty strings; keys containing spaces or dots (the
// institute's historical naming) are duplicated under their folded aliases so
// both spellings resolve.
func BuildContext(values map[string]interface{}) map[string]string {
	out := make(map[string]string, len(values)*2)
	for key, value := range values {
		rendered := ""
		if value != nil {
			rendered = fmt.Sprintf("%v", value)
		}
		out[key] = rendered
		if alias := NormalizeName(key); alias != "" && alias != key {
			out[alias] = rendered
		}
	}
	return out
}

func xmlEscape(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return replacer.Replace(s)
}

// substitute replaces every {{name}} token whose normalized name resolves in
// the context. Unresolved tokens are left in place so a missing key stays
// visible in the output rather than vanishing silently.
func substitute(content string, ctx map[string]string) string {
	return tokenRe.ReplaceAllStringFunc(content, func(token string) string {
		if !strings.HasPrefix(token, "{{") {
			return token
		}
		name := NormalizeName(token[2 : len(token)-2])
		if value, ok := ctx[name]; ok {
			return xmlEscape(value)
		}
		return token
	})
}

// Render sanitizes the template, substitutes the context and writes the
// filled document to outputPath. The sanitized intermediate is always
// removed; on failure any partial output is removed too.
func Render(templatePath, outputPath string, values map[string]interface{}) error {
	tempPath := filepath.Join(os.TempDir(), "docgen-"+uuid.NewString()+".docx")
	defer os.Remove(tempPath)

	if err := Sanitize(templatePath, tempPath); err != nil {
		return err
	}

	ctx := BuildContext(values)

	reader, err := zip.OpenReader(tempPath)
	if err != nil {
		return fmt.Errorf("open sanitized template: %w", err)
	}
	defer reader.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	writer := zip.NewWriter(out)

	fail := func(err error) error {
		writer.Close()
		out.Close()
		os.Remove(outputPath)
		return err
	}

	for _, member := range reader.File {
		src, err := member.Open()
		if err != nil {
			return fail(fmt.Errorf("open part %s: %w", member.Name, err))
		}
		dst, err := writer.CreateHeader(&zip.FileHeader{Name: member.Name, Method: member.Method})
		if err != nil {
			src.Close()
			return fail(fmt.Errorf("write part %s: %w", member.Name, err))
		}
		if targetPart(member.Name) {
			raw, err := io.ReadAll(src)
			src.Close()
			if err != nil {
				return fail(fmt.Errorf("read part %s: %w", member.Name, err))
			}
			if _, err := io.WriteString(dst, substitute(string(raw), ctx)); err != nil {
				return fail(err)
			}
			continue
		}
		_, err = io.Copy(dst, src)
		src.Close()
		if err != nil {
			return fail(err)
		}
	}
	if err := writer.Close(); err != nil {
		out.Close()
		os.Remove(outputPath)
		return fmt.Errorf("finalize output: %w", err)
	}
	return out.Close()
}
