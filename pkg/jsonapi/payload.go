package jsonapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

type Links struct {
	Self    string `json:"self,omitempty"`
	Related string `json:"related,omitempty"`
}

// Top-level links of a document. Collections always carry 'self', paginated
// ones carry the rest.
type DocumentLinks struct {
	Self  string `json:"self,omitempty"`
	First string `json:"first,omitempty"`
	Last  string `json:"last,omitempty"`
	Prev  string `json:"prev,omitempty"`
	Next  string `json:"next,omitempty"`
}

type ResourceIdentifier struct {
	Type string `json:"type"`
	Id   string `json:"id"`
}

type ResourceObject struct {
	Type          string                  `json:"type"`
	Id            string                  `json:"id,omitempty"`
	Attributes    map[string]interface{}  `json:"attributes,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
	Links         *Links                  `json:"links,omitempty"`
}

func (r ResourceObject) Identifier() ResourceIdentifier {
	return ResourceIdentifier{Type: r.Type, Id: r.Id}
}

// A relationship may carry links, data or both. A nil Data means the 'data'
// member is absent altogether, which is not the same as 'data: null'.
type Relationship struct {
	Links *Links            `json:"links,omitempty"`
	Data  *RelationshipData `json:"data,omitempty"`
}

// RelationshipData renders as a single identifier, null, or an array of
// identifiers depending on Plural.
type RelationshipData struct {
	Plural bool
	One    *ResourceIdentifier
	Many   []ResourceIdentifier
}

func (d RelationshipData) MarshalJSON() ([]byte, error) {
	if d.Plural {
		many := d.Many
		if many == nil {
			many = []ResourceIdentifier{}
		}
		return json.Marshal(many)
	}
	return json.Marshal(d.One)
}

func (d *RelationshipData) UnmarshalJSON(body []byte) error {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		d.Plural = true
		return json.Unmarshal(body, &d.Many)
	}
	d.Plural = false
	if bytes.Equal(body, []byte("null")) {
		d.One = nil
		return nil
	}
	var identifier ResourceIdentifier
	if err := json.Unmarshal(body, &identifier); err != nil {
		return err
	}
	d.One = &identifier
	return nil
}

// Pagination information under 'meta.page'
type PageMeta struct {
	Number int `json:"number"`
	Size   int `json:"size"`
	Total  int `json:"total"`
	Last   int `json:"last"`
}

/*
Document is a {json:api} top-level document with primary data.

When Plural is false, Data holds at most one resource object and an empty
Data renders as 'data: null'. When Plural is true, Data renders as an array
that is never null, so an empty collection is '{"data": []}'.
*/
type Document struct {
	Data     []ResourceObject
	Plural   bool
	Included []ResourceObject
	Links    *DocumentLinks
	Meta     map[string]interface{}
}

// Used to marshal / unmarshal documents
type documentPayload struct {
	Data     json.RawMessage        `json:"data"`
	Included []ResourceObject       `json:"included,omitempty"`
	Links    *DocumentLinks         `json:"links,omitempty"`
	Meta     map[string]interface{} `json:"meta,omitempty"`
}

func (d Document) MarshalJSON() ([]byte, error) {
	var data []byte
	var err error
	if d.Plural {
		items := d.Data
		if items == nil {
			items = []ResourceObject{}
		}
		data, err = json.Marshal(items)
	} else if len(d.Data) == 0 {
		data = []byte("null")
	} else if len(d.Data) == 1 {
		data, err = json.Marshal(d.Data[0])
	} else {
		return nil, errors.New("singular document holds more than one resource")
	}
	if err != nil {
		return nil, err
	}

	return json.Marshal(documentPayload{
		Data:     data,
		Included: d.Included,
		Links:    d.Links,
		Meta:     d.Meta,
	})
}

func (d *Document) UnmarshalJSON(body []byte) error {
	var payload documentPayload
	err := json.Unmarshal(body, &payload)
	if err != nil {
		return err
	}

	d.Included = payload.Included
	d.Links = payload.Links
	d.Meta = payload.Meta
	d.Data = nil

	// Here we figure out whether the primary data is singular or plural
	data := bytes.TrimSpace(payload.Data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		d.Plural = false
	case data[0] == '[':
		d.Plural = true
		d.Data = make([]ResourceObject, 0)
		err = json.Unmarshal(data, &d.Data)
	case data[0] == '{':
		d.Plural = false
		var item ResourceObject
		err = json.Unmarshal(data, &item)
		d.Data = []ResourceObject{item}
	default:
		err = fmt.Errorf("invalid primary data '%s'", data)
	}
	return err
}

// Single returns the primary resource of a singular document
func (d Document) Single() (ResourceObject, bool) {
	if d.Plural || len(d.Data) != 1 {
		return ResourceObject{}, false
	}
	return d.Data[0], true
}

func jsonEqual(leftBytes, rightBytes []byte) (bool, error) {
	var left interface{}
	err := json.Unmarshal(leftBytes, &left)
	if err != nil {
		return false, err
	}

	var right interface{}
	err = json.Unmarshal(rightBytes, &right)
	if err != nil {
		return false, err
	}

	return reflect.DeepEqual(left, right), nil
}

// Convert a document's included array to a <type>:<id> -> resource map
func makeIncludedMap(included []ResourceObject) map[string]ResourceObject {
	result := make(map[string]ResourceObject)
	for _, resource := range included {
		key := fmt.Sprintf("%s:%s", resource.Type, resource.Id)
		result[key] = resource
	}
	return result
}

/*
FindIncluded
Look up the included resource a relationship of 'resource' points to.
Returns false if the relationship has no singular data or the related resource
is not part of the 'included' array.
*/
func (d Document) FindIncluded(
	resource ResourceObject, relationship string,
) (ResourceObject, bool) {
	related, exists := resource.Relationships[relationship]
	if !exists || related.Data == nil || related.Data.Plural ||
		related.Data.One == nil {
		return ResourceObject{}, false
	}
	included := makeIncludedMap(d.Included)
	item, exists := included[fmt.Sprintf(
		"%s:%s", related.Data.One.Type, related.Data.One.Id,
	)]
	return item, exists
}
