package services

import (
	"context"
	"testing"
)

func TestSearchMatchesPrefixes(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.register(t, "alice@example.com", "Alice")
	env.register(t, "alison@example.com", "Alison")
	env.register(t, "bob@example.com", "bob")

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"username prefix", "ali", []string{"Alice", "Alison"}},
		{"case folded", "ALI", []string{"Alice", "Alison"}},
		{"exact username", "alice", []string{"Alice"}},
		{"email prefix", "bob@", []string{"bob"}},
		{"no match", "zz", nil},
		{"too short", "a", nil},
		{"blank", "   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := env.users.Search(ctx, tt.query)
			if err != nil {
				t.Fatalf("Search(%q) failed: %v", tt.query, err)
			}
			got := make(map[string]bool, len(results))
			for _, u := range results {
				got[u.Username] = true
			}
			if len(results) != len(tt.want) {
				t.Fatalf("Search(%q) returned %d users, want %d", tt.query, len(results), len(tt.want))
			}
			for _, name := range tt.want {
				if !got[name] {
					t.Errorf("Search(%q) missing %q", tt.query, name)
				}
			}
		})
	}
}

func TestSearchDeduplicatesUsernameAndEmailHits(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	// Username and email share the prefix, so both scans return this user.
	env.register(t, "carol@example.com", "carol")

	results, err := env.users.Search(ctx, "carol")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Search returned %d results, want 1 after dedup", len(results))
	}
}
