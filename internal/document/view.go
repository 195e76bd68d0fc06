package document

import (
	"fmt"
	"strconv"
)

type relationState int

const (
	unloaded relationState = iota
	loadedOne
	loadedMany
)

/*
Relation is the state of one relation of a fetched resource: not loaded, a
to-one value (possibly empty) or a to-many collection. The zero value is not
loaded.
*/
type Relation struct {
	state relationState
	one   *ResourceView
	many  []ResourceView
}

func Unloaded() Relation {
	return Relation{state: unloaded}
}

// ToOne marks a loaded to-one relation, nil means there is no related resource
func ToOne(view *ResourceView) Relation {
	return Relation{state: loadedOne, one: view}
}

func ToMany(views []ResourceView) Relation {
	if views == nil {
		views = []ResourceView{}
	}
	return Relation{state: loadedMany, many: views}
}

func (r Relation) Loaded() bool {
	return r.state != unloaded
}

func (r Relation) IsMany() bool {
	return r.state == loadedMany
}

func (r Relation) One() *ResourceView {
	return r.one
}

func (r Relation) Many() []ResourceView {
	return r.many
}

// Resources returns every related resource of a loaded relation
func (r Relation) Resources() []ResourceView {
	switch r.state {
	case loadedOne:
		if r.one == nil {
			return nil
		}
		return []ResourceView{*r.one}
	case loadedMany:
		return r.many
	}
	return nil
}

/*
ResourceView
One fetched resource. ID holds the route key's value, RouteKey names the
attribute it was read from. A relation missing from Relations is not loaded.
*/
type ResourceView struct {
	Type       string
	ID         interface{}
	RouteKey   string
	Attributes map[string]interface{}
	Relations  map[string]Relation

	// Relations that get 'links.self' and 'links.related'
	RelationshipLinks []string
}

func (v ResourceView) StringID() string {
	return StringID(v.ID)
}

func (v ResourceView) Relation(name string) Relation {
	return v.Relations[name]
}

// StringID renders an identifier the way it appears in documents
func StringID(id interface{}) string {
	switch value := id.(type) {
	case nil:
		return ""
	case string:
		return value
	case []byte:
		return string(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case int:
		return strconv.Itoa(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return fmt.Sprint(value)
	}
}
