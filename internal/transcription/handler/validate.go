package handler

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// SupportedExtensions lists the accepted filename extensions.
var SupportedExtensions = []string{".mp3", ".wav", ".m4a", ".flac", ".ogg", ".aac"}

// DefaultMaxPayloadBytes is the largest accepted recording.
const DefaultMaxPayloadBytes = 200 << 20

// ValidationError reports a request rejected before any processing.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// validate checks the request in order: filename, payload, extension, size.
func validate(filename string, payloadLen int, maxPayload int64) error {
	if strings.TrimSpace(filename) == "" {
		return &ValidationError{Reason: "filename is empty"}
	}
	if payloadLen == 0 {
		return &ValidationError{Reason: "audio data is empty"}
	}
	ext := extension(filename)
	if !slices.Contains(SupportedExtensions, ext) {
		return &ValidationError{Reason: fmt.Sprintf("unsupported file format: %s", ext)}
	}
	if maxPayload > 0 && int64(payloadLen) > maxPayload {
		return &ValidationError{Reason: fmt.Sprintf("audio data exceeds %d bytes", maxPayload)}
	}
	return nil
}

func extension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// decodeFormat picks the format handed to the decoder: the declared format
// when it names a supported container, otherwise the filename extension.
func decodeFormat(declared, filename string) string {
	d := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(declared), "."))
	if d != "" && slices.Contains(SupportedExtensions, "."+d) {
		return d
	}
	return strings.TrimPrefix(extension(filename), ".")
}
