package jsonapi

import (
	"errors"
)

type Collection struct {
	API      *Connection
	Data     []ResourceObject
	Included []ResourceObject
	Meta     map[string]interface{}
	Next     string
	Previous string
}

/*
GetNext
Return the next page of the paginated collection as pointed to by the
`.links.next` field in the {json:api} response
*/
func (c *Collection) GetNext() (Collection, error) {
	var result Collection
	if c.Next == "" {
		return result, errors.New("no next page")
	}
	return c.API.listFromPath(c.Next)
}

/*
GetPrevious
Return the previous page of the paginated collection as pointed to by the
`.links.prev` field in the {json:api} response
*/
func (c *Collection) GetPrevious() (Collection, error) {
	var result Collection
	if c.Previous == "" {
		return result, errors.New("no previous page")
	}
	return c.API.listFromPath(c.Previous)
}
