package utils

import (
	"strings"
)

// JoinPath joins URL path parts using forward slashes.
// It strips leading/trailing slashes from each component, then prefixes the result with "/".
// Pattern:
//   - No parts = "/"
//   - "/ru/Api/", "GetIndexTreeData" = "/ru/Api/GetIndexTreeData"
func JoinPath(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		part = strings.Trim(part, "/")
		if part != "" {
			cleaned = append(cleaned, part)
		}
	}

	if len(cleaned) == 0 {
		return "/"
	}

	return "/" + strings.Join(cleaned, "/")
}

// NormalizeList canonicalizes a comma-joined id list: items are trimmed and empty items dropped.
// Order is preserved because the upstream API treats it as significant.
//   - " 247783, 741917," = "247783,741917"
func NormalizeList(s string) string {
	if s == "" {
		return ""
	}
	items := strings.Split(s, ",")
	cleaned := items[:0]
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			cleaned = append(cleaned, item)
		}
	}
	return strings.Join(cleaned, ",")
}
