package apilib

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transifex/jsonapi-server/pkg/jsonapi"
)

func fakeEditor(t *testing.T, edit func(input []byte) ([]byte, error)) {
	t.Helper()
	original := invokeEditor
	invokeEditor = func(input []byte, editor string) ([]byte, error) {
		return edit(input)
	}
	t.Cleanup(func() { invokeEditor = original })
}

func articleEndpoint(extra ...jsonapi.MockRequest) jsonapi.MockData {
	requests := []jsonapi.MockRequest{{
		Response: jsonapi.MockResponse{Text: `{"data": {
			"type": "articles", "id": "hello",
			"attributes": {"title": "Hello", "views": 3}
		}}`},
	}}
	return jsonapi.MockData{
		"/articles/hello": &jsonapi.MockEndpoint{
			Requests: append(requests, extra...),
		},
	}
}

func TestEditCommandSendsChangedAttributes(t *testing.T) {
	fakeEditor(t, func(input []byte) ([]byte, error) {
		assert.JSONEq(t, `{"title": "Hello", "views": 3}`, string(input))
		return []byte(`{"title": "Bye", "views": 3, "extra": true}`), nil
	})
	mockData := articleEndpoint(jsonapi.MockRequest{
		Response: jsonapi.MockResponse{Text: `{"data": {
			"type": "articles", "id": "hello", "attributes": {"title": "Bye"}
		}}`},
	})
	api := jsonapi.GetTestConnection(mockData)

	err := EditCommand(&api, EditCommandArguments{
		Type: "articles", Id: "hello", Editor: "vi",
	})
	require.NoError(t, err)

	request := mockData["/articles/hello"].Requests[1].Request
	assert.Equal(t, "PATCH", request.Method)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(request.Payload, &payload))
	assert.Equal(t, map[string]interface{}{
		"type":       "articles",
		"id":         "hello",
		"attributes": map[string]interface{}{"title": "Bye"},
	}, payload["data"])
}

func TestEditCommandWithoutChanges(t *testing.T) {
	fakeEditor(t, func(input []byte) ([]byte, error) {
		return input, nil
	})
	mockData := articleEndpoint()
	api := jsonapi.GetTestConnection(mockData)

	err := EditCommand(&api, EditCommandArguments{Type: "articles", Id: "hello"})
	require.NoError(t, err)
	assert.Equal(t, 1, mockData["/articles/hello"].Count)
}

func TestEditCommandFailures(t *testing.T) {
	testCases := []struct {
		name   string
		output []byte
		err    error
	}{
		{"editor fails", nil, errors.New("exit status 1")},
		{"invalid json", []byte(`{"title": `), nil},
	}
	for _, testCase := range testCases {
		fakeEditor(t, func(input []byte) ([]byte, error) {
			return testCase.output, testCase.err
		})
		mockData := articleEndpoint()
		api := jsonapi.GetTestConnection(mockData)
		err := EditCommand(&api, EditCommandArguments{
			Type: "articles", Id: "hello",
		})
		assert.Error(t, err, testCase.name)
		assert.Equal(t, 1, mockData["/articles/hello"].Count, testCase.name)
	}
}

func TestRunEditorNeedsAnEditor(t *testing.T) {
	_, err := runEditor([]byte("{}"), "")
	assert.Error(t, err)
}
