package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/ew73/slack-karma/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "karma.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_MigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(context.Background(), db))
}

func TestDocumentStore_LoadMissing(t *testing.T) {
	store := NewDocumentStore(openTestDB(t), "")

	doc, err := store.Load(context.Background())

	require.NoError(t, err)
	assert.Empty(t, doc)
}

func TestDocumentStore_RoundTrip(t *testing.T) {
	store := NewDocumentStore(openTestDB(t), "")
	ctx := context.Background()

	doc := domain.Document{}
	doc.SetKarma("pizza", 9)
	doc.SetKarma(`"c++ templates"`, -1)
	doc.SetKarma("zero", 0)
	require.NoError(t, store.Save(ctx, doc))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)

	for subject, want := range map[string]int64{"pizza": 9, `"c++ templates"`: -1, "zero": 0} {
		got, err := loaded.Karma(subject)
		require.NoError(t, err)
		assert.Equal(t, want, got, subject)
	}
}

func TestDocumentStore_SaveOverwritesWholeDocument(t *testing.T) {
	db := openTestDB(t)
	store := NewDocumentStore(db, "")
	ctx := context.Background()

	first := domain.Document{}
	first.SetKarma("a", 1)
	first.SetKarma("b", 2)
	require.NoError(t, store.Save(ctx, first))

	second := domain.Document{}
	second.SetKarma("a", 3)
	require.NoError(t, store.Save(ctx, second))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)

	var body string
	require.NoError(t, db.QueryRow(`SELECT body FROM karma_documents WHERE name = ?`, DefaultDocument).Scan(&body))
	assert.JSONEq(t, `{"a":3}`, body)
}

func TestDocumentStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "karma.db")
	ctx := context.Background()

	db, err := Open(ctx, path)
	require.NoError(t, err)
	doc := domain.Document{}
	doc.SetKarma("go", 12)
	require.NoError(t, NewDocumentStore(db, "").Save(ctx, doc))
	require.NoError(t, db.Close())

	db, err = Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	loaded, err := NewDocumentStore(db, "").Load(ctx)
	require.NoError(t, err)
	karma, err := loaded.Karma("go")
	require.NoError(t, err)
	assert.Equal(t, int64(12), karma)
}

func TestDocumentStore_MalformedBody(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, err := db.Exec(`INSERT INTO karma_documents (name, body) VALUES (?, ?)`, DefaultDocument, `"oops"`)
	require.NoError(t, err)

	_, err = NewDocumentStore(db, "").Load(ctx)
	assert.ErrorIs(t, err, domain.ErrMalformedDocument)
}

func TestDocumentStore_Ping(t *testing.T) {
	assert.NoError(t, NewDocumentStore(openTestDB(t), "").Ping(context.Background()))
}
