package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/MrSnakeDoc/staywatch/internal/domain"
	"github.com/MrSnakeDoc/staywatch/internal/logger"
	"github.com/MrSnakeDoc/staywatch/internal/state"
)

func openTemp(t *testing.T) (*Backend, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db", "staywatch.db")
	b, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b, path
}

func TestBackendReadWrite(t *testing.T) {
	b, _ := openTemp(t)
	ctx := context.Background()

	if _, err := b.Read(ctx); !errors.Is(err, state.ErrNotExist) {
		t.Fatalf("Read() on empty table error = %v, want state.ErrNotExist", err)
	}

	for _, doc := range []string{`{"A":{}}`, `{"B":{}}`} {
		if err := b.Write(ctx, []byte(doc)); err != nil {
			t.Fatalf("Write(%s) error = %v", doc, err)
		}
	}

	data, err := b.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(data) != `{"B":{}}` {
		t.Errorf("Read() = %s, want the last write", data)
	}

	var rows int
	if err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM staywatch_state`).Scan(&rows); err != nil {
		t.Fatalf("count error = %v", err)
	}
	if rows != 1 {
		t.Errorf("table holds %d rows, want 1", rows)
	}
}

func TestStoreOverSQLiteSurvivesReopen(t *testing.T) {
	b, path := openTemp(t)
	ctx := context.Background()

	st, err := state.Open(ctx, b, logger.NewNop())
	if err != nil {
		t.Fatalf("state.Open() error = %v", err)
	}
	ads := []domain.Ad{{ID: "id1", Title: "Villa", URL: "https://example.com/villa"}}
	if err := st.Save(ctx, "Hotels in Rovinj", ads); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open() again error = %v", err)
	}
	defer func() { _ = reopened.Close() }()

	st2, err := state.Open(ctx, reopened, logger.NewNop())
	if err != nil {
		t.Fatalf("state.Open() again error = %v", err)
	}
	if !st2.Load("Hotels in Rovinj").Has("id1") {
		t.Error("snapshot lost across reopen")
	}
}
