package match_test

import (
	"regexp"
	"strings"
	"testing"

	"github.com/krisalay/request-cache/match"
)

func TestMatchers(t *testing.T) {
	tests := []struct {
		name string
		m    match.Matcher
		key  string
		want bool
	}{
		{"exact hit", match.Exact("scans_1"), "scans_1", true},
		{"exact sibling", match.Exact("scans_1"), "scans_10", false},
		{"prefix hit", match.Prefix("products_"), `products_{"category":"Bebidas"}`, true},
		{"prefix other resource", match.Prefix("products_"), "scans_{}", false},
		{"regexp anchored", match.Regexp(regexp.MustCompile(`^certs_`)), "certs_{}", true},
		{"regexp miss", match.MustRegexp(`^certs_`), "x_certs_{}", false},
		{"func", match.Func(func(k string) bool { return strings.Contains(k, "Bebidas") }), `products_{"category":"Bebidas"}`, true},
		{"all", match.All(), "anything", true},
		{"nil func", match.Func(nil), "anything", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.Match(tt.key); got != tt.want {
				t.Fatalf("Match(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestIsAll(t *testing.T) {
	if !match.IsAll(nil) {
		t.Fatal("nil matcher should select everything")
	}
	if !match.IsAll(match.All()) {
		t.Fatal("All() should report IsAll")
	}
	if match.IsAll(match.Prefix("")) {
		t.Fatal("an empty prefix is still a key matcher")
	}
}

func TestRegexpRejectsNil(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Regexp(nil) did not panic")
		}
	}()
	match.Regexp(nil)
}
