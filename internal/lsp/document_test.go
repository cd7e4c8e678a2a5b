package lsp

import (
	"testing"
)

func TestDocumentStore_OpenGetClose(t *testing.T) {
	store := NewDocumentStore()

	uri := "file:///queries/report.sql"
	content := "SELECT * FROM users"

	store.Open(uri, content, 1)

	doc := store.Get(uri)
	if doc == nil {
		t.Fatal("expected document to exist")
	}
	if doc.URI != uri {
		t.Errorf("expected URI %s, got %s", uri, doc.URI)
	}
	if doc.Content != content {
		t.Errorf("expected content %q, got %q", content, doc.Content)
	}
	if doc.Version != 1 {
		t.Errorf("expected version 1, got %d", doc.Version)
	}

	store.Close(uri)
	if store.Get(uri) != nil {
		t.Error("expected document to be nil after close")
	}
}

func TestDocumentStore_Update(t *testing.T) {
	store := NewDocumentStore()

	uri := "file:///queries/report.sql"
	store.Open(uri, "SELECT 1", 1)
	store.Update(uri, "SELECT 2", 2)

	doc := store.Get(uri)
	if doc.Content != "SELECT 2" {
		t.Errorf("expected content 'SELECT 2', got %q", doc.Content)
	}
	if doc.Version != 2 {
		t.Errorf("expected version 2, got %d", doc.Version)
	}
}

func TestDocumentStore_UpdateUnknownURIIsNoop(t *testing.T) {
	store := NewDocumentStore()
	store.Update("file:///missing.sql", "SELECT 1", 1)

	if store.Get("file:///missing.sql") != nil {
		t.Error("update must not create documents")
	}
}

func TestDocument_PositionToOffset(t *testing.T) {
	doc := &Document{
		Content: "line one\nline two\nthird",
		Lines:   computeLineOffsets("line one\nline two\nthird"),
	}

	tests := []struct {
		name string
		pos  Position
		want int
	}{
		{"start of document", Position{0, 0}, 0},
		{"middle of first line", Position{0, 4}, 4},
		{"start of second line", Position{1, 0}, 9},
		{"middle of second line", Position{1, 5}, 14},
		{"past end of document", Position{10, 0}, 23},
		{"past end of last line", Position{2, 100}, 23},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := doc.PositionToOffset(tt.pos)
			if got != tt.want {
				t.Errorf("PositionToOffset(%v) = %d, want %d", tt.pos, got, tt.want)
			}
		})
	}
}

func TestDocument_OffsetToPosition(t *testing.T) {
	content := "abc\ndef\n"
	doc := &Document{Content: content, Lines: computeLineOffsets(content)}

	tests := []struct {
		name   string
		offset int
		want   Position
	}{
		{"start", 0, Position{0, 0}},
		{"mid first line", 2, Position{0, 2}},
		{"newline belongs to its line", 3, Position{0, 3}},
		{"start of second line", 4, Position{1, 0}},
		{"after trailing newline", 8, Position{2, 0}},
		{"negative clamps", -5, Position{0, 0}},
		{"beyond end clamps", 100, Position{2, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := doc.OffsetToPosition(tt.offset)
			if got != tt.want {
				t.Errorf("OffsetToPosition(%d) = %v, want %v", tt.offset, got, tt.want)
			}
		})
	}
}

func TestDocument_LinePrefix(t *testing.T) {
	content := "SELECT id\nFROM users u\nWHERE u."
	doc := &Document{Content: content, Lines: computeLineOffsets(content)}

	tests := []struct {
		name string
		pos  Position
		want string
	}{
		{"start of line", Position{1, 0}, ""},
		{"mid line", Position{1, 4}, "FROM"},
		{"cursor after dot", Position{2, 8}, "WHERE u."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := doc.LinePrefix(tt.pos)
			if got != tt.want {
				t.Errorf("LinePrefix(%v) = %q, want %q", tt.pos, got, tt.want)
			}
		})
	}
}

func TestURIConversion(t *testing.T) {
	if got := URIToPath("file:///home/user/q.sql"); got != "/home/user/q.sql" {
		t.Errorf("URIToPath = %q", got)
	}
	if got := URIToPath("/already/a/path.sql"); got != "/already/a/path.sql" {
		t.Errorf("URIToPath passthrough = %q", got)
	}
	if got := PathToURI("/home/user/q.sql"); got != "file:///home/user/q.sql" {
		t.Errorf("PathToURI = %q", got)
	}
	if got := PathToURI("file:///home/user/q.sql"); got != "file:///home/user/q.sql" {
		t.Errorf("PathToURI passthrough = %q", got)
	}
}
