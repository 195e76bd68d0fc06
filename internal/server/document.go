package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/transifex/jsonapi-server/pkg/jsonapi"
)

const validatedDataKey = "jsonapi.data"

/*
ValidateDocument
Check the top-level shape of POST and PATCH documents:

  - 'data' is required and must be an object or an array
  - 'data.type' is a required string, unless 'data' is an array whose first
    item has a type
  - 'data.attributes' is a required object, except on relationship endpoints
    and when 'data' is an array whose first item has a type
  - on PATCH 'data.id' is a required string, unless 'data' is an array whose
    first item has an id

Failures are reported as a *jsonapi.ValidationError. The validated 'data'
member is available to handlers through ValidatedData.
*/
func ValidateDocument() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != http.MethodPost && method != http.MethodPatch {
			c.Next()
			return
		}

		body, err := c.GetRawData()
		if err != nil {
			fail(c, err)
			return
		}
		var document map[string]interface{}
		decoder := json.NewDecoder(bytes.NewReader(body))
		decoder.UseNumber()
		if err := decoder.Decode(&document); err != nil {
			fail(c, &jsonapi.HttpError{
				StatusCode: http.StatusBadRequest,
				Message:    "The request body is not a valid JSON document.",
			})
			return
		}

		invalid := validateData(
			document, method,
			strings.Contains(c.Request.URL.Path, "relationships"),
		)
		if !invalid.Empty() {
			fail(c, invalid)
			return
		}
		c.Set(validatedDataKey, document["data"])
		c.Next()
	}
}

func validateData(
	document map[string]interface{}, method string, relationshipEndpoint bool,
) *jsonapi.ValidationError {
	invalid := jsonapi.NewValidationError()

	data, exists := document["data"]
	if !exists || data == nil {
		return invalid.Add("data", "The data field is required.")
	}
	object, isObject := data.(map[string]interface{})
	list, isList := data.([]interface{})
	if !isObject && !isList {
		return invalid.Add("data", "The data field must be an array.")
	}
	// An array of resource identifiers, as sent to to-many relationship
	// endpoints
	firstType, firstID := false, false
	if isList && len(list) > 0 {
		if first, ok := list[0].(map[string]interface{}); ok {
			firstType = filled(first["type"])
			firstID = filled(first["id"])
		}
	}

	if !firstType {
		checkString(invalid, object, "type")
	}
	if !relationshipEndpoint && !firstType {
		attributes, exists := object["attributes"]
		if !exists || attributes == nil {
			invalid.Add("data.attributes",
				"The data.attributes field is required.")
		} else if _, ok := attributes.(map[string]interface{}); !ok {
			invalid.Add("data.attributes",
				"The data.attributes field must be an array.")
		}
	}
	if method == http.MethodPatch && !firstID {
		checkString(invalid, object, "id")
	}
	return invalid
}

func checkString(
	invalid *jsonapi.ValidationError, object map[string]interface{}, key string,
) {
	field := "data." + key
	value, exists := object[key]
	if !exists || value == nil {
		invalid.Add(field, fmt.Sprintf("The %s field is required.", field))
		return
	}
	if _, ok := value.(string); !ok {
		invalid.Add(field, fmt.Sprintf("The %s field must be a string.", field))
	}
}

func filled(value interface{}) bool {
	switch typed := value.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(typed) != ""
	default:
		return true
	}
}

// ValidatedData returns the 'data' object of a document that passed
// ValidateDocument, nil when there is none or it is an array
func ValidatedData(c *gin.Context) map[string]interface{} {
	value, _ := c.Get(validatedDataKey)
	data, _ := value.(map[string]interface{})
	return data
}

func Attributes(c *gin.Context) map[string]interface{} {
	attributes, _ := ValidatedData(c)["attributes"].(map[string]interface{})
	return attributes
}

func relationships(c *gin.Context) map[string]interface{} {
	result, _ := ValidatedData(c)["relationships"].(map[string]interface{})
	return result
}

func HasRelationship(c *gin.Context, relation string) bool {
	_, exists := relationships(c)[relation]
	return exists
}

/*
RelationshipID
Return 'data.relationships.<relation>.data.id'. The second value is false when
the document does not mention the relation, a mentioned relation with
'data: null' gives nil and true.
*/
func RelationshipID(c *gin.Context, relation string) (*string, bool, error) {
	member, exists := relationships(c)[relation]
	if !exists {
		return nil, false, nil
	}
	id, ok := identifierID(member)
	if !ok {
		return nil, true, jsonapi.NewValidationError().Add(
			"relationships."+relation, relationshipMessage(relation),
		)
	}
	return id, true, nil
}

func identifierID(member interface{}) (*string, bool) {
	object, _ := member.(map[string]interface{})
	data, exists := object["data"]
	if !exists {
		return nil, false
	}
	if data == nil {
		return nil, true
	}
	identifier, _ := data.(map[string]interface{})
	id, ok := identifier["id"].(string)
	if !ok || id == "" {
		return nil, false
	}
	return &id, true
}

func relationshipMessage(relation string) string {
	return fmt.Sprintf(
		"The %s relationship must be a resource identifier.", relation,
	)
}

// Relationships collects every to-one relationship of the validated document
// as relation name -> route key of the related resource
func Relationships(c *gin.Context) (map[string]*string, error) {
	members := relationships(c)
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)

	invalid := jsonapi.NewValidationError()
	result := make(map[string]*string, len(names))
	for _, name := range names {
		id, ok := identifierID(members[name])
		if !ok {
			invalid.Add("relationships."+name, relationshipMessage(name))
			continue
		}
		result[name] = id
	}
	if !invalid.Empty() {
		return nil, invalid
	}
	return result, nil
}
