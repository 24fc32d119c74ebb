package core

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

func DataRoot() string {
	if v := os.Getenv("DATA_ROOT"); v != "" {
		return v
	}
	return filepath.Join(".", "data")
}

// VideoIDFromPath derives a stable identifier from the video location.
func VideoIDFromPath(videoPath string) string {
	cleanPath := filepath.Clean(videoPath)
	baseName := filepath.Base(cleanPath)
	name := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	name = strings.ToLower(name)
	hash := md5.Sum([]byte(cleanPath))
	return fmt.Sprintf("%s_%s", name, hex.EncodeToString(hash[:])[:8])
}

func MustJSON(v any) []byte {
	b, _ := json.MarshalIndent(v, "", "  ")
	return b
}

func SaveJSON(path string, v any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func EnsureDir(dir string) error { return os.MkdirAll(dir, 0755) }

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

var nonLetter = regexp.MustCompile(`[^a-zA-Z0-9\p{Han}]+`)
var stops = map[string]struct{}{"the": {}, "and": {}, "a": {}, "an": {}, "of": {}, "to": {}, "in": {}, "is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "that": {}, "this": {}, "it": {}, "as": {}, "at": {}, "be": {}, "by": {}, "from": {}, "was": {}, "were": {}, "or": {}, "we": {}, "you": {}, "your": {}, "can": {}, "will": {}, "have": {}, "has": {}}

func Tokenize(s string) []string {
	s = strings.ToLower(s)
	s = nonLetter.ReplaceAllString(s, " ")
	parts := strings.Fields(s)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if _, ok := stops[p]; ok {
			continue
		}
		if len(p) < 2 {
			continue
		}
		out = append(out, p)
	}
	return out
}

// TopTerms returns up to n frequent terms from text, most frequent first.
// Ties keep first-seen order so the output is deterministic.
func TopTerms(text string, n int) []string {
	toks := Tokenize(text)
	counts := map[string]int{}
	order := make([]string, 0)
	for _, t := range toks {
		if len(t) < 4 {
			continue
		}
		if _, seen := counts[t]; !seen {
			order = append(order, t)
		}
		counts[t]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if n > len(order) {
		n = len(order)
	}
	return order[:n]
}

// FormatTime renders seconds as MM:SS.
func FormatTime(sec float64) string {
	sec = math.Max(sec, 0)
	m := int(sec) / 60
	s := int(sec) % 60
	return fmt.Sprintf("%02d:%02d", m, s)
}

// FormatTimeLong renders seconds as HH:MM:SS.
func FormatTimeLong(sec float64) string {
	sec = math.Max(sec, 0)
	h := int(sec) / 3600
	m := (int(sec) % 3600) / 60
	s := int(sec) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
