package roomname

import (
	"slices"
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		name := Generate()
		parts := strings.Split(name, "-")
		if len(parts) != 3 {
			t.Fatalf("Generate() = %q, want three words", name)
		}
		if !slices.Contains(moods, parts[0]) || !slices.Contains(creatures, parts[1]) || !slices.Contains(places, parts[2]) {
			t.Errorf("Generate() = %q uses unknown words", name)
		}
		seen[name] = true
	}
	if len(seen) < 2 {
		t.Error("Generate() keeps returning the same name")
	}
}
