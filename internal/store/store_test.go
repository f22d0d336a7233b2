package store

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "progress.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)

	s.Save(KeyWarnings, "3")
	got, ok := s.Load(KeyWarnings)
	if !ok || got != "3" {
		t.Errorf("Load() = (%q, %v), want (\"3\", true)", got, ok)
	}

	// Upsert overwrites.
	s.Save(KeyWarnings, "4")
	if got, _ := s.Load(KeyWarnings); got != "4" {
		t.Errorf("Load() after overwrite = %q, want \"4\"", got)
	}
}

func TestLoadMissingKey(t *testing.T) {
	s := openTestStore(t)
	if _, ok := s.Load("nope"); ok {
		t.Error("Load() of missing key reported present")
	}
}

func TestLoadIntRejectsGarbage(t *testing.T) {
	s := openTestStore(t)

	s.Save(KeyTimeRemaining, "not-a-number")
	if _, ok := s.LoadInt(KeyTimeRemaining); ok {
		t.Error("LoadInt() accepted a non-integer value")
	}

	s.SaveInt(KeyTimeRemaining, 1742)
	n, ok := s.LoadInt(KeyTimeRemaining)
	if !ok || n != 1742 {
		t.Errorf("LoadInt() = (%d, %v), want (1742, true)", n, ok)
	}
}

func TestJSONRoundTripAndCorruption(t *testing.T) {
	type answer struct {
		ID     int    `json:"id"`
		Answer string `json:"answer"`
	}

	s := openTestStore(t)

	in := []answer{{ID: 1, Answer: "A"}, {ID: 2, Answer: ""}}
	s.SaveJSON(KeyAnswers, in)

	var out []answer
	if !s.LoadJSON(KeyAnswers, &out) {
		t.Fatal("LoadJSON() reported absent for a saved value")
	}
	if len(out) != 2 || out[0] != in[0] || out[1] != in[1] {
		t.Errorf("LoadJSON() = %+v, want %+v", out, in)
	}

	// A corrupted entry is treated as no prior state, never an error.
	s.Save(KeyAnswers, "{truncated")
	out = nil
	if s.LoadJSON(KeyAnswers, &out) {
		t.Error("LoadJSON() accepted malformed JSON")
	}
}

func TestClearRemovesOnlyNamedKeys(t *testing.T) {
	s := openTestStore(t)

	s.Save(KeyWarnings, "2")
	s.Save(KeyTimeRemaining, "100")
	s.Save(KeyAnswers, "[]")
	s.Save(KeyAccessToken, "token")

	s.Clear(KeyWarnings, KeyTimeRemaining, KeyAnswers)

	for _, key := range []string{KeyWarnings, KeyTimeRemaining, KeyAnswers} {
		if _, ok := s.Load(key); ok {
			t.Errorf("key %q survived Clear", key)
		}
	}
	// Credential keys are not session progress and must survive.
	if _, ok := s.Load(KeyAccessToken); !ok {
		t.Error("credential key was cleared with session progress")
	}
}

func TestOpenPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.db")

	s1, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s1.Save(KeyUserName, "student42")

	s2, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if got, ok := s2.Load(KeyUserName); !ok || got != "student42" {
		t.Errorf("Load() after reopen = (%q, %v), want (\"student42\", true)", got, ok)
	}
}
