package planner

import "github.com/transifex/jsonapi-server/pkg/jsonapi"

// SchemaInfo describes what the data store knows about one resource type
type SchemaInfo struct {
	Type    string
	Columns []string
	Scopes  []string

	// nil means the data store does not declare relationships, includes are
	// then trusted to the allow-list
	Relationships []string
}

func (s SchemaInfo) HasColumn(name string) bool {
	return contains(s.Columns, name)
}

// Scope names match in their normalized form, 'is-draft' and 'is_draft' are
// the same scope
func (s SchemaInfo) HasScope(name string) bool {
	for _, scope := range s.Scopes {
		if jsonapi.Normalize(scope) == jsonapi.Normalize(name) {
			return true
		}
	}
	return false
}

func (s SchemaInfo) HasRelationship(name string) bool {
	if s.Relationships == nil {
		return true
	}
	return contains(s.Relationships, name)
}

func contains(haystack []string, needle string) bool {
	for _, item := range haystack {
		if item == needle {
			return true
		}
	}
	return false
}
