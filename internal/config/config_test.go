package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := "testdata/jsonapi.ini"
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, Main{
		Listen:      ":8080",
		Database:    "blog.sqlite",
		BaseURL:     "https://blog.example.com",
		RoutePrefix: "api/v1",
		PageSize:    20,
		FilterMode:  FilterSubstring,
		Token:       "secret",
		LogLevel:    "info",
		LogFormat:   "text",
	}, cfg.Main)

	require.Len(t, cfg.Resources, 2)
	assert.Equal(t, Resource{
		Type:               "articles",
		Table:              "articles",
		RouteKey:           "slug",
		AllowedSorts:       []string{"title", "created-at"},
		AllowedFilters:     []string{"title", "published"},
		AllowedIncludes:    []string{"category", "comments"},
		RelationshipLinks:  []string{"category", "comments"},
		RequiredAttributes: []string{"title"},
		SlugFrom:           "title",
		Relations: []Relation{
			{"category", BelongsTo, "categories", "category_id"},
			{"comments", HasMany, "comments", "article_id"},
		},
		Scopes: []Scope{{
			"published", "published_at IS NOT NULL AND ? <> '0'",
		}},
	}, cfg.Resources[0])
	assert.Equal(t, "categories", cfg.Resources[1].Type)
	assert.Equal(t, "id", cfg.Resources[1].RouteKey)

	allow := cfg.FindResource("articles").AllowList(cfg.Main.PageSize)
	assert.Equal(t, "articles", allow.Type)
	assert.Equal(t, 20, allow.PageSize)
	assert.Equal(t, []string{"category", "comments"}, allow.Includes)
	assert.Nil(t, cfg.FindResource("authors"))
}

func TestLoadMissingConfig(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.ini"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadInvalidConfig(t *testing.T) {
	testCases := []string{
		"[main]\npage_size = 0\n",
		"[main]\npage_size = many\n",
		"[main]\nfilter_mode = fuzzy\n",
		"[articles]\nrelation.comments = has_many comments\n",
		"[articles]\nrelation.comments = has_one comments article_id\n",
		"[articles]\nrelation.comments = has_many\n",
		"[articles]\nscope.published =\n",
		"[articles]\nrelation.relationships = has_many comments article_id\n",
	}
	for _, testCase := range testCases {
		_, err := LoadFromBytes([]byte(testCase))
		if err == nil {
			t.Errorf("Config '%s' loaded, expected an error", testCase)
		}
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	expected, err := Load("testdata/jsonapi.ini")
	require.NoError(t, err)

	var buffer bytes.Buffer
	require.NoError(t, expected.SaveToWriter(&buffer))

	actual, err := LoadFromBytes(buffer.Bytes())
	require.NoError(t, err)
	assert.True(t, configsEqual(expected, actual),
		"got %+v, expected %+v", actual, expected)
}

func TestSaveOnlyWhenChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jsonapi.ini")
	cfg := New(path)
	require.NoError(t, cfg.AddResource(Resource{
		Type: "tags", Table: "tags", RouteKey: "id",
	}))
	require.NoError(t, cfg.Save())

	before, err := os.Stat(path)
	require.NoError(t, err)

	// Same content, the file is left alone
	require.NoError(t, os.Chtimes(path, before.ModTime().Add(-3600e9),
		before.ModTime().Add(-3600e9)))
	unchanged, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Save())
	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, unchanged.ModTime(), after.ModTime())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tags", loaded.Resources[0].Type)
}

func TestAddResource(t *testing.T) {
	cfg := New("")
	require.NoError(t, cfg.AddResource(Resource{Type: "tags"}))
	require.NoError(t, cfg.AddResource(Resource{Type: "authors"}))
	assert.Error(t, cfg.AddResource(Resource{Type: "tags"}))
	assert.Error(t, cfg.AddResource(Resource{Type: "main"}))
	assert.Equal(t, "authors", cfg.Resources[0].Type)
	assert.Error(t, cfg.Save())
}
