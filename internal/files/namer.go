package files

import (
	"strings"
	"time"
)

// Placeholders substituted for fields that sanitize down to nothing.
const (
	placeholderUnknown        = "unknown"
	placeholderClassification = "unclassified"
	placeholderDrawingNumber  = "unnumbered"
)

const illegalChars = `<>:"/\|?*`

// Sanitize strips filesystem-illegal characters (control characters and
// <>:"/\|?*) from text, collapses repeated separators, trims leading and
// trailing separators, and substitutes "unknown" when nothing is left.
// The result is a non-empty, cross-platform-legal path component.
func Sanitize(text string) string {
	if out := sanitize(text); out != "" {
		return out
	}
	return placeholderUnknown
}

func sanitize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(illegalChars, r) {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}

	out := b.String()
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	return strings.Trim(out, "_")
}

// ComposeName builds the human-readable export filename
// <YYYYMMDDHHMMSS>_<classification>_<drawingNumber>_<creator>.pdf,
// sanitizing each field independently and substituting a placeholder for
// each absent field. Stored files never use this name; it exists for
// export and rename operations only.
func ComposeName(timestamp time.Time, classification, drawingNumber, creator string) string {
	parts := []string{
		timestamp.Format("20060102150405"),
		fieldOrPlaceholder(classification, placeholderClassification),
		fieldOrPlaceholder(drawingNumber, placeholderDrawingNumber),
		fieldOrPlaceholder(creator, placeholderUnknown),
	}
	return strings.Join(parts, "_") + ".pdf"
}

func fieldOrPlaceholder(field, placeholder string) string {
	if out := sanitize(field); out != "" {
		return out
	}
	return placeholder
}
