package validation

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizePath(t *testing.T) {
	base := t.TempDir()
	tests := []struct {
		name     string
		userPath string
		want     string
		wantErr  error
	}{
		{"simple", "out.docx", "out.docx", nil},
		{"nested", "revised/out.docx", filepath.Join("revised", "out.docx"), nil},
		{"dot segments", "a/../out.docx", "out.docx", nil},
		{"name starting with dots", "..draft.docx", "..draft.docx", nil},
		{"parent", "../out.docx", "", ErrPathTraversal},
		{"deep parent", "a/../../out.docx", "", ErrPathTraversal},
		{"absolute", "/etc/passwd", "", ErrPathTraversal},
		{"empty", "", "", ErrEmptyPath},
		{"null byte", "out\x00.docx", "", ErrInvalidCharacter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizePath(base, tt.userPath)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("SanitizePath(%q) error = %v, want %v", tt.userPath, err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("SanitizePath(%q) = %q, %v; want %q", tt.userPath, got, err, tt.want)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr error
	}{
		{"report.docx", nil},
		{"/tmp/some dir/report.docx", nil},
		{"", ErrEmptyPath},
		{strings.Repeat("a", MaxPathLength+1), ErrPathTooLong},
		{"bad\nname", ErrInvalidCharacter},
	}
	for _, tt := range tests {
		if err := ValidatePath(tt.path); !errors.Is(err, tt.wantErr) {
			t.Errorf("ValidatePath(%.20q) = %v, want %v", tt.path, err, tt.wantErr)
		}
	}
}

func TestValidateDocumentPath(t *testing.T) {
	for _, ok := range []string{"a.docx", "b.DOCX", "macro.docm", "tmpl.dotx"} {
		if err := ValidateDocumentPath(ok); err != nil {
			t.Errorf("ValidateDocumentPath(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"a.doc", "a.txt", "noext"} {
		if err := ValidateDocumentPath(bad); !errors.Is(err, ErrExtension) {
			t.Errorf("ValidateDocumentPath(%q) = %v, want ErrExtension", bad, err)
		}
	}
}

func TestValidateText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr error
	}{
		{"ascii", "Hello world", nil},
		{"empty", "", nil},
		{"cjk", "第一句。", nil},
		{"tabs and newlines", "a\tb\r\nc", nil},
		{"emoji", "ok 👍", nil},
		{"vertical tab", "a\vb", ErrInvalidCharacter},
		{"null", "a\x00b", ErrInvalidCharacter},
		{"noncharacter", "a\uFFFEb", ErrInvalidCharacter},
		{"invalid utf8", "a\xffb", ErrInvalidUTF8},
		{"too long", strings.Repeat("x", MaxTextLength+1), ErrTextTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateText(tt.text); !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateText = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePackage(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"zip", []byte("PK\x03\x04rest"), nil},
		{"legacy doc", []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1}, ErrNotPackage},
		{"short", []byte("PK"), ErrNotPackage},
		{"empty", nil, ErrNotPackage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidatePackage(bytes.NewReader(tt.data)); !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePackage = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
