package config

import "strings"

// secretKeys lists the dot-separated keys whose values are masked on display.
var secretKeys = map[string]bool{
	"redis.password": true,
	"gateway.secret": true,
}

// IsSecretKey reports whether the dot-separated key holds a secret.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}

// Flatten converts a nested map into a flat map with dot-separated keys.
// {"state": {"backend": "file"}} becomes {"state.backend": "file"}.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	flatten("", m, out)
	return out
}

func flatten(prefix string, m map[string]any, out map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			flatten(key, child, out)
			continue
		}
		out[key] = v
	}
}

// MaskSecrets returns a copy of the flat map with secret values masked as
// "***" plus the last four characters. Empty secrets stay empty.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		s, ok := v.(string)
		if !secretKeys[k] || !ok || s == "" {
			out[k] = v
			continue
		}
		if len(s) <= 4 {
			out[k] = strings.Repeat("*", len(s))
			continue
		}
		out[k] = "***" + s[len(s)-4:]
	}
	return out
}
