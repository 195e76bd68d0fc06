package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

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

var testDefinitions = []ResourceDefinition{
	{
		Type:     "articles",
		RouteKey: "slug",
		Relations: []RelationDefinition{
			{Name: "category", Kind: BelongsTo, Target: "categories",
				ForeignKey: "category_id"},
			{Name: "comments", Kind: HasMany, Target: "comments",
				ForeignKey: "article_id"},
		},
		Scopes: []ScopeDefinition{
			{Name: "published", Clause: "published = ?"},
		},
		RelationshipLinks: []string{"category", "comments"},
		SlugFrom:          "title",
	},
	{
		Type: "categories",
		Relations: []RelationDefinition{
			{Name: "articles", Kind: HasMany, Target: "articles",
				ForeignKey: "category_id"},
		},
	},
	{
		Type: "comments",
		Relations: []RelationDefinition{
			{Name: "article", Kind: BelongsTo, Target: "articles",
				ForeignKey: "article_id"},
		},
	},
}

// setupTestStore returns an in-memory store holding the blog fixtures
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	_, err = st.DB().ExecContext(context.Background(), testSchema)
	require.NoError(t, err)

	for _, definition := range testDefinitions {
		require.NoError(t, st.Define(definition))
	}
	return st
}
