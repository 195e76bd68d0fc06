package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/transifex/jsonapi-server/internal/config"
	"github.com/transifex/jsonapi-server/internal/logger"
	"github.com/transifex/jsonapi-server/internal/store"
)

const testConfig = `
[main]
base_url     = https://example.com
route_prefix = api/v1
page_size    = 2

[articles]
route_key           = slug
slug_from           = title
allowed_sorts       = title, created-at
allowed_filters     = title, published, status
allowed_includes    = category, comments
relationship_links  = category, comments
required_attributes = title
relation.category   = belongs_to categories category_id
relation.comments   = has_many comments article_id
scope.published     = published = ?

[categories]
allowed_sorts      = name
allowed_includes   = articles
relationship_links = articles
relation.articles  = has_many articles category_id

[comments]
relation.article = belongs_to articles article_id
`

const testSchema = `
CREATE TABLE categories (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE articles (
	id          INTEGER PRIMARY KEY,
	slug        TEXT NOT NULL UNIQUE,
	title       TEXT NOT NULL,
	body        TEXT,
	published   INTEGER NOT NULL DEFAULT 0,
	category_id INTEGER REFERENCES categories (id)
);
CREATE TABLE comments (
	id         INTEGER PRIMARY KEY,
	article_id INTEGER NOT NULL REFERENCES articles (id),
	body       TEXT
);

INSERT INTO categories (id, name) VALUES (1, 'News'), (2, 'Sports');
INSERT INTO articles (id, slug, title, body, published, category_id) VALUES
	(1, 'hello-world', 'Hello World', 'First body', 1, 1),
	(2, 'second-post', 'Second Post', 'Second body', 0, 2),
	(3, 'third', 'Third News', NULL, 1, NULL);
INSERT INTO comments (id, article_id, body) VALUES
	(1, 1, 'Nice'),
	(2, 1, 'Great'),
	(3, 2, 'Meh');
`

const baseURL = "https://example.com/api/v1"

// setupTestServer serves the blog fixtures out of an in-memory database
func setupTestServer(t *testing.T, edit func(cfg *config.Config)) *Server {
	t.Helper()

	cfg, err := config.LoadFromBytes([]byte(testConfig))
	require.NoError(t, err)
	if edit != nil {
		edit(cfg)
	}

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	_, err = st.DB().ExecContext(context.Background(), testSchema)
	require.NoError(t, err)

	srv, err := New(cfg, st, logger.New(logger.Config{Out: io.Discard}))
	require.NoError(t, err)
	return srv
}

func serve(srv *Server, request *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	srv.Handler().ServeHTTP(recorder, request)
	return recorder
}
