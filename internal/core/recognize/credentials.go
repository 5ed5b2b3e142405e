package recognize

import "strings"

// SanitizeCredential trims whitespace and one layer of matching surrounding
// quotes, so keys pasted from shell exports or config snippets work as-is.
func SanitizeCredential(value string) string {
	cleaned := strings.TrimSpace(value)
	if len(cleaned) >= 2 && cleaned[0] == cleaned[len(cleaned)-1] &&
		(cleaned[0] == '\'' || cleaned[0] == '"') {
		cleaned = strings.TrimSpace(cleaned[1 : len(cleaned)-1])
	}
	return cleaned
}
