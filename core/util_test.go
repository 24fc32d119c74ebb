package core

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestVideoIDFromPath(t *testing.T) {
	id := VideoIDFromPath("/videos/My Launch Talk.mp4")
	again := VideoIDFromPath("/videos/My Launch Talk.mp4")
	if id != again {
		t.Errorf("same path gave different ids: %s vs %s", id, again)
	}
	other := VideoIDFromPath("/elsewhere/My Launch Talk.mp4")
	if id == other {
		t.Error("different paths share an id")
	}
	if want := "my launch talk_"; len(id) <= len(want) || id[:len(want)] != want {
		t.Errorf("id %q does not start with the lowercased name", id)
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("The quick brown fox, and THE lazy dog!")
	want := []string{"quick", "brown", "fox", "lazy", "dog"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}
}

func TestTopTerms(t *testing.T) {
	text := "latency latency latency rollout rollout dashboard metrics on the and"
	got := TopTerms(text, 3)
	want := []string{"latency", "rollout", "dashboard"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopTerms = %v, want %v", got, want)
	}

	// Ties keep first-seen order, so repeated calls agree.
	again := TopTerms(text, 3)
	if !reflect.DeepEqual(got, again) {
		t.Errorf("TopTerms not deterministic: %v vs %v", got, again)
	}
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		sec  float64
		want string
	}{
		{0, "00:00"},
		{59.4, "00:59"},
		{125, "02:05"},
		{600, "10:00"},
		{-5, "00:00"},
	}
	for _, tt := range tests {
		if got := FormatTime(tt.sec); got != tt.want {
			t.Errorf("FormatTime(%v) = %s, want %s", tt.sec, got, tt.want)
		}
	}
}

func TestFormatTimeLong(t *testing.T) {
	if got := FormatTimeLong(3725); got != "01:02:05" {
		t.Errorf("FormatTimeLong(3725) = %s, want 01:02:05", got)
	}
}

func TestSaveJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifact.json")
	in := map[string]any{"video_id": "abc", "duration": 600.0}
	if err := SaveJSON(path, in); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}
	if !FileExists(path) {
		t.Fatal("file not written")
	}
}
