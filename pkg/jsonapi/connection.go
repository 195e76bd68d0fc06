package jsonapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type Connection struct {
	Host    string
	Token   string
	Client  http.Client
	Headers map[string]string

	// Used for testing
	RequestMethod func(method, path string,
		payload []byte, contentType string) ([]byte, error)
}

func (c *Connection) request(
	method,
	path string,
	payload []byte,
	contentType string,
) ([]byte, error) {
	if c.RequestMethod != nil {
		return c.RequestMethod(method, path, payload, contentType)
	}

	if strings.HasPrefix(path, "/") {
		path = strings.TrimSuffix(c.Host, "/") + path
	}

	if c.Client.CheckRedirect == nil {
		c.Client.CheckRedirect = func(
			req *http.Request, via []*http.Request,
		) error {
			return &RedirectError{Location: req.URL.String()}
		}
	}

	requestObj, err := http.NewRequest(method, path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	requestObj.Header.Add("Accept", MediaType)
	if payload != nil {
		if contentType == "" {
			contentType = MediaType
		}
		requestObj.Header.Add("Content-Type", contentType)
	}
	if c.Token != "" {
		requestObj.Header.Add("Authorization", "Bearer "+c.Token)
	}
	for header, value := range c.Headers {
		requestObj.Header.Add(header, value)
	}
	response, err := c.Client.Do(requestObj)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}

	errorResponse := parseErrorResponse(response.StatusCode, body)
	if errorResponse != nil {
		return nil, errorResponse
	}

	return body, nil
}

/*
Get
Returns the primary resource served at /<type>/<id>
*/
func (c *Connection) Get(Type, Id string) (ResourceObject, error) {
	url := fmt.Sprintf("/%s/%s", Type, Id)
	document, err := c.GetDocument(url)
	if err != nil {
		return ResourceObject{}, err
	}
	resource, ok := document.Single()
	if !ok {
		return ResourceObject{}, fmt.Errorf("%s did not return a single resource", url)
	}
	return resource, nil
}

/*
GetDocument
Returns the whole document served at a path, including 'included', 'links' and
'meta'.
*/
func (c *Connection) GetDocument(path string) (Document, error) {
	var document Document
	body, err := c.request("GET", path, nil, "")
	if err != nil {
		return document, err
	}
	err = json.Unmarshal(body, &document)
	return document, err
}

/*
List
Returns a Collection instance from the server. Query is a URL encoded set of GET
variables that can be easily generated from the Query type and Query.Encode
method.
*/
func (c *Connection) List(Type, Query string) (Collection, error) {
	Url := fmt.Sprintf("/%s", Type)
	if Query != "" {
		Url = Url + "?" + Query
	}
	return c.listFromPath(Url)
}

func (c *Connection) listFromPath(Url string) (Collection, error) {
	var result Collection
	document, err := c.GetDocument(Url)
	if err != nil {
		return result, err
	}
	if !document.Plural {
		return result, fmt.Errorf("%s did not return a collection", Url)
	}

	result.API = c
	result.Data = document.Data
	result.Included = document.Included
	result.Meta = document.Meta
	if document.Links != nil {
		result.Previous = document.Links.Prev
		result.Next = document.Links.Next
	}

	return result, nil
}

/*
Create
POST a resource to /<type>. The response's primary resource is returned, it
carries the identifier the server assigned.
*/
func (c *Connection) Create(resource ResourceObject) (ResourceObject, error) {
	return c.save("POST", fmt.Sprintf("/%s", resource.Type), resource)
}

/*
Update
PATCH the resource's attributes and relationships. Only the members present on
'resource' are sent.
*/
func (c *Connection) Update(resource ResourceObject) (ResourceObject, error) {
	if resource.Id == "" {
		return ResourceObject{}, fmt.Errorf("cannot update a resource without an id")
	}
	return c.save(
		"PATCH", fmt.Sprintf("/%s/%s", resource.Type, resource.Id), resource,
	)
}

func (c *Connection) save(
	method, url string, resource ResourceObject,
) (ResourceObject, error) {
	// Links are server generated
	resource.Links = nil
	if resource.Attributes == nil {
		resource.Attributes = make(map[string]interface{})
	}
	body, err := json.Marshal(Document{Data: []ResourceObject{resource}})
	if err != nil {
		return ResourceObject{}, err
	}

	body, err = c.request(method, url, body, "")
	if err != nil {
		return ResourceObject{}, err
	}

	var document Document
	err = json.Unmarshal(body, &document)
	if err != nil {
		return ResourceObject{}, err
	}
	result, ok := document.Single()
	if !ok {
		return ResourceObject{}, fmt.Errorf("%s did not return a single resource", url)
	}
	return result, nil
}
