package middleware

import "strings"

// MaskSessionID оставляет в логах только первые 4 символа session_id.
func MaskSessionID(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "***"
}
