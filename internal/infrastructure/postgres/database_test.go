package postgres

import (
	"strings"
	"testing"
	"time"
)

func TestSanitizeQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "placeholders kept",
			query: "UPDATE todos SET completed = $1 WHERE id = $2",
			want:  "UPDATE todos SET completed = $1 WHERE id = $2",
		},
		{
			name:  "string literal replaced",
			query: "INSERT INTO todos (text) VALUES ('buy milk')",
			want:  "INSERT INTO todos (text) VALUES ('?')",
		},
		{
			name:  "escaped quote inside literal",
			query: "SELECT 'it''s' FROM todos",
			want:  "SELECT '?' FROM todos",
		},
		{
			name:  "numeric literal replaced",
			query: "DELETE FROM todos WHERE id = 42",
			want:  "DELETE FROM todos WHERE id = ?",
		},
		{
			name:  "identifier digits kept",
			query: "SELECT col1 FROM t2",
			want:  "SELECT col1 FROM t2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeQuery(tt.query); got != tt.want {
				t.Errorf("sanitizeQuery(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestSanitizeQuery_Truncates(t *testing.T) {
	q := "SELECT " + strings.Repeat("x", 400)

	got := sanitizeQuery(q)
	if len(got) != 256+len("...") {
		t.Errorf("len(sanitizeQuery()) = %d, want %d", len(got), 259)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("sanitizeQuery() should end with ellipsis, got %q", got[len(got)-5:])
	}
}

func TestExtractSQLVerb(t *testing.T) {
	tests := map[string]string{
		"  select id from todos": "SELECT",
		"UPDATE todos SET x = 1": "UPDATE",
		"\n\t\tDELETE FROM todos": "DELETE",
		"VACUUM":                 "VACUUM",
	}

	for query, want := range tests {
		if got := extractSQLVerb(query); got != want {
			t.Errorf("extractSQLVerb(%q) = %q, want %q", query, got, want)
		}
	}
}

func TestPoolOptions_WithDefaults(t *testing.T) {
	got := PoolOptions{}.withDefaults()
	if got.MaxOpenConns != 25 || got.MaxIdleConns != 5 || got.ConnMaxLifetime != 5*time.Minute {
		t.Errorf("withDefaults() = %+v", got)
	}

	custom := PoolOptions{MaxOpenConns: 3, MaxIdleConns: 1, ConnMaxLifetime: time.Minute}.withDefaults()
	if custom.MaxOpenConns != 3 || custom.MaxIdleConns != 1 || custom.ConnMaxLifetime != time.Minute {
		t.Errorf("withDefaults() overrode explicit values: %+v", custom)
	}
}
