package models

import (
	"errors"
	"testing"
)

func TestSummary_Add(t *testing.T) {
	var s Summary
	results := []FileResult{
		{Path: "a.txt", Size: 10},
		{Path: "b.txt", Size: 5},
		{Path: "dir", IsDir: true},
		{Path: "c.txt", Size: 3, Skipped: true},
		{Path: "d.txt", Size: 7, Err: errors.New("crc")},
	}
	for _, r := range results {
		s.Add(r)
	}

	if s.Files != 2 || s.Bytes != 15 {
		t.Errorf("Files = %d, Bytes = %d, want 2, 15", s.Files, s.Bytes)
	}
	if s.Dirs != 1 {
		t.Errorf("Dirs = %d, want 1", s.Dirs)
	}
	if s.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", s.Skipped)
	}
	if len(s.Failed) != 1 || s.Failed[0].Path != "d.txt" {
		t.Errorf("Failed = %v", s.Failed)
	}
	if s.OK() {
		t.Error("OK() = true, want false")
	}
}

func TestSummary_OK(t *testing.T) {
	tests := []struct {
		name string
		s    Summary
		want bool
	}{
		{"空", Summary{}, true},
		{"成功のみ", Summary{Files: 3}, true},
		{"見つからない指定あり", Summary{NotFound: []string{"x"}}, false},
		{"失敗あり", Summary{Failed: []FileResult{{Path: "x"}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.OK(); got != tt.want {
				t.Errorf("OK() = %v, want %v", got, tt.want)
			}
		})
	}
}
