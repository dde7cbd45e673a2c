// Package artifactpath names stored artifacts.
package artifactpath

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	fallbackName  = "artifact"
	maxNameLength = 120
)

// New returns a fresh "<uuid>_<name>" path for a suggested file name.
func New(suggestedName string) string {
	return uuid.NewString() + "_" + Sanitize(suggestedName)
}

// Sanitize reduces a client supplied file name to a safe base name.
func Sanitize(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = filepath.Base(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := strings.TrimLeft(b.String(), ".")
	if len(out) > maxNameLength {
		out = out[len(out)-maxNameLength:]
	}
	if strings.Trim(out, "_") == "" {
		return fallbackName
	}
	return out
}

// ContentType guesses the media type stored alongside an artifact.
func ContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
