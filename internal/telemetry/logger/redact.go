// Package logger provides structured logging for tokpass.
package logger

import (
	"log/slog"
	"strings"
)

// Key fragments that mark an attribute as carrying a credential.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"access",
	"refresh",
	"credential",
	"passphrase",
	"bearer",
	"authorization",
}

// Bearer-style value prefixes that are masked whatever the key is.
var sensitiveValuePrefixes = []string{
	"Bearer ",
	"eyJ", // JWT header
}

const redactedValue = "***REDACTED***"

// redactSensitive redacts an attribute whose key or value looks like a
// credential. Groups are walked recursively.
func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		v := a.Value.String()
		if v == "" {
			return a
		}
		if IsSensitiveKey(a.Key) || IsSensitiveValue(v) {
			return slog.String(a.Key, redactedValue)
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// IsSensitiveKey checks if a key name suggests credential content.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(k, pattern) {
			return true
		}
	}
	return false
}

// IsSensitiveValue checks if a value looks like a bearer credential.
func IsSensitiveValue(value string) bool {
	for _, prefix := range sensitiveValuePrefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}
