// Package validation checks user-supplied paths and text before they reach
// a document.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Limits on untrusted input (CWE-400).
const (
	// MaxFileSize is the largest package accepted (256 MB).
	MaxFileSize = 256 << 20
	// MaxPathLength is the longest path accepted.
	MaxPathLength = 4096
	// MaxTextLength is the longest replacement text accepted, in characters.
	MaxTextLength = 1 << 20
)

// Common validation errors.
var (
	ErrPathTraversal    = errors.New("path traversal detected")
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character")
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrTextTooLong      = errors.New("text too long")
	ErrInvalidUTF8      = errors.New("text is not valid UTF-8")
	ErrNotPackage       = errors.New("not a zip package")
	ErrExtension        = errors.New("unsupported extension")
)

// SanitizePath resolves userPath inside baseDir. Absolute paths and paths
// that climb out of baseDir are rejected. The cleaned relative path is
// returned.
func SanitizePath(baseDir, userPath string) (string, error) {
	if err := ValidatePath(userPath); err != nil {
		return "", err
	}

	cleanPath := filepath.Clean(userPath)
	if filepath.IsAbs(cleanPath) {
		return "", fmt.Errorf("%w: absolute path not allowed", ErrPathTraversal)
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(baseDir, cleanPath))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return cleanPath, nil
}

// ValidatePath checks length and rejects null bytes and control characters.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	for _, r := range path {
		if r == 0 {
			return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
		}
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// ValidateDocumentPath checks a path a document will be written to.
func ValidateDocumentPath(path string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx", ".docm", ".dotx", ".dotm":
		return nil
	}
	return fmt.Errorf("%w: %q", ErrExtension, filepath.Ext(path))
}

// ValidateText checks text destined for a w:t element. It must be valid
// UTF-8, within MaxTextLength, and free of characters XML 1.0 cannot carry.
func ValidateText(text string) error {
	if !utf8.ValidString(text) {
		return ErrInvalidUTF8
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return ErrTextTooLong
	}
	for i, r := range text {
		if !isXMLChar(r) {
			return fmt.Errorf("%w: U+%04X at byte %d", ErrInvalidCharacter, r, i)
		}
	}
	return nil
}

// isXMLChar reports whether r is in the XML 1.0 Char production.
func isXMLChar(r rune) bool {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

var zipMagic = []byte{0x50, 0x4b, 0x03, 0x04}

// ValidatePackage checks that reader starts with a zip local file header,
// which every Office Open XML package does.
func ValidatePackage(reader io.Reader) error {
	buf := make([]byte, len(zipMagic))
	n, err := io.ReadFull(reader, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return fmt.Errorf("failed to read file header: %w", err)
	}
	if !bytes.Equal(buf[:n], zipMagic) {
		return ErrNotPackage
	}
	return nil
}
