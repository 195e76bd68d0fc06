package jsonapi

import "fmt"

type CapturedRequest struct {
	Method      string
	Payload     []byte
	ContentType string
}
type MockResponse struct {
	Text     string
	Status   int
	Redirect string
}

type MockRequest struct {
	Response MockResponse
	Request  CapturedRequest
}

type MockEndpoint struct {
	Requests []MockRequest
	Count    int
}

// MockData maps request paths, query string included, to canned responses
type MockData map[string]*MockEndpoint

func (mockData *MockData) Get(path string) *MockRequest {
	endpoint, exists := (*mockData)[path]
	if !exists {
		return nil
	}
	if endpoint.Count >= len(endpoint.Requests) {
		return nil
	}
	endpoint.Count++
	return &endpoint.Requests[endpoint.Count-1]
}

/*
GetTestConnection
A Connection that answers from mockData instead of the network. A response
with a Status of 400 or more is turned into an *Error the same way a real
server response would be.
*/
func GetTestConnection(mockData MockData) Connection {
	return Connection{
		RequestMethod: func(
			method, path string, payload []byte, contentType string,
		) ([]byte, error) {
			mockRequest := mockData.Get(path)
			if mockRequest == nil {
				return nil, fmt.Errorf("%s not found", path)
			}
			mockRequest.Request.Method = method
			mockRequest.Request.Payload = payload
			mockRequest.Request.ContentType = contentType

			if mockRequest.Response.Redirect != "" {
				return nil, &RedirectError{mockRequest.Response.Redirect}
			}
			errorResponse := parseErrorResponse(
				mockRequest.Response.Status,
				[]byte(mockRequest.Response.Text),
			)
			if errorResponse != nil {
				return nil, errorResponse
			}
			return []byte(mockRequest.Response.Text), nil
		},
	}
}
