package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestValidateEntry(t *testing.T) {
	tests := []struct {
		name    string
		entry   *Entry
		wantErr error
	}{
		{
			name:    "valid flat entry",
			entry:   &Entry{Content: json.RawMessage(`{"word":"grace"}`)},
			wantErr: nil,
		},
		{
			name: "valid book entry",
			entry: &Entry{
				Family:   FamilyScripture,
				Metadata: json.RawMessage(`{"version":"1"}`),
				Chapters: []Chapter{{Number: 1}, {Number: 2}},
			},
			wantErr: nil,
		},
		{
			name:    "book family with no chapters",
			entry:   &Entry{Family: FamilyNotes},
			wantErr: nil,
		},
		{
			name:    "nil entry",
			entry:   nil,
			wantErr: ErrInvalidEntry,
		},
		{
			name:    "invalid metadata",
			entry:   &Entry{Metadata: json.RawMessage(`{"broken"`)},
			wantErr: ErrInvalidEntry,
		},
		{
			name:    "chapters without family",
			entry:   &Entry{Chapters: []Chapter{{Number: 1}}},
			wantErr: ErrInvalidEntry,
		},
		{
			name:    "zero chapter number",
			entry:   &Entry{Family: FamilyScripture, Chapters: []Chapter{{Number: 0}}},
			wantErr: ErrInvalidChapterNumber,
		},
		{
			name:    "duplicate chapter",
			entry:   &Entry{Family: FamilyQuestions, Chapters: []Chapter{{Number: 3}, {Number: 3}}},
			wantErr: ErrDuplicateChapter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEntry(tt.entry)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateEntry() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateEntry() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateKey(t *testing.T) {
	if err := ValidateKey(""); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("ValidateKey(\"\") error = %v, want %v", err, ErrEmptyKey)
	}
	if err := ValidateKey("dictionary:uw/en/tw:grace"); err != nil {
		t.Errorf("ValidateKey() unexpected error = %v", err)
	}
}
