package words

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedListLoads(t *testing.T) {
	v, err := LoadListValidator("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v.Len() < 100 {
		t.Fatalf("embedded list too small: %d", v.Len())
	}
	ok, err := v.IsCompleteWord(context.Background(), "Crane", false)
	if err != nil || !ok {
		t.Fatalf("crane = %v, %v", ok, err)
	}
}

func TestListValidatorMinLength(t *testing.T) {
	v := NewListValidator([]string{"cat", "cats", "at"})
	ctx := context.Background()
	tests := []struct {
		seq        string
		superghost bool
		want       bool
	}{
		{"at", false, false},
		{"cat", false, true},
		{"cat", true, false},
		{"cats", true, true},
		{"dogs", true, false},
	}
	for _, tc := range tests {
		got, err := v.IsCompleteWord(ctx, tc.seq, tc.superghost)
		if err != nil || got != tc.want {
			t.Errorf("IsCompleteWord(%q, %v) = %v, %v; want %v", tc.seq, tc.superghost, got, err, tc.want)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	if err := os.WriteFile(path, []byte("Ghost\n  spook \nx-ray\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	v, err := LoadListValidator(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v.Len() != 2 {
		t.Fatalf("len = %d, want 2 (x-ray dropped)", v.Len())
	}
	defs, _ := v.Definitions(context.Background(), "SPOOK")
	if len(defs) != 1 {
		t.Fatalf("definitions = %+v", defs)
	}
	if _, err := LoadListValidator(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatal("missing file accepted")
	}
}
