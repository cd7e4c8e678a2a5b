package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLooksLikeSQL(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"x = 5", false},
		{"SELECT id FROM users WHERE id = 1", true},
		{"select *\n  from\n  orders", true},
		{"INSERT INTO t VALUES (1)", true},
		{"UPDATE t SET a = 1", true},
		{"DELETE FROM t", true},
		{"WITH cte AS (SELECT 1) SELECT * FROM cte", true},
		{"CREATE TABLE t (id int)", true},
		{"ALTER TABLE t ADD COLUMN x int", true},
		{"DROP TABLE old_stuff", true},
		{"select anything from the menu today", true}, // permissive by design
		{"SELECT 1", false},     // too short
		{"", false},             // empty
		{"       \n\t ", false}, // whitespace only
		{"update your bookmarks", false},
		{"a plain sentence present in the file", false},
		{"DELETE all the things now", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LooksLikeSQL(tt.text), "LooksLikeSQL(%q)", tt.text)
	}
}

func TestLooksLikeSQLNormalizesWhitespace(t *testing.T) {
	// 10-char minimum applies after whitespace runs collapse.
	assert.False(t, LooksLikeSQL("  S E L\n\n\t  "))
	assert.True(t, LooksLikeSQL("select\n\n\n*\n\nfrom\n\nt2"))
}
