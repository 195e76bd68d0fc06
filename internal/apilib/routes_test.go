package apilib

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transifex/jsonapi-server/internal/config"
)

const testConfig = `
[main]
base_url     = https://example.com
route_prefix = api/v1

[articles]
route_key          = slug
allowed_sorts      = title, created-at
allowed_filters    = title, published
allowed_includes   = category
relationship_links = category
relation.category  = belongs_to categories category_id
scope.published    = published = ?

[categories]
relation.articles = has_many articles category_id
`

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromBytes([]byte(testConfig))
	require.NoError(t, err)
	return cfg
}

func TestRoutesCommandPrintsTabSeparatedLines(t *testing.T) {
	var out bytes.Buffer
	err := RoutesCommand(loadTestConfig(t), &out, RoutesCommandArguments{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 12)
	assert.Equal(t, "GET\t/api/v1/articles\tarticles.index", lines[0])
	assert.Equal(t,
		"GET\t/api/v1/articles/:id/relationships/category\t"+
			"articles.relationships.category",
		lines[5])
	assert.Equal(t, "PATCH\t/api/v1/categories/:id\tcategories.update", lines[9])
}

func TestRoutesCommandRendersTable(t *testing.T) {
	var out bytes.Buffer
	err := RoutesCommand(loadTestConfig(t), &out,
		RoutesCommandArguments{Table: true})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Method")
	assert.Contains(t, out.String(), "articles.show")
	assert.NotContains(t, out.String(), "\t")
}
