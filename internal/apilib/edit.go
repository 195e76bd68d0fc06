package apilib

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"reflect"

	"github.com/google/shlex"
	"github.com/pterm/pterm"
	"github.com/transifex/jsonapi-server/pkg/jsonapi"
)

type EditCommandArguments struct {
	Type   string
	Id     string
	Editor string
}

// Replaced in tests
var invokeEditor = runEditor

func runEditor(input []byte, editor string) ([]byte, error) {
	if editor == "" {
		return nil, errors.New(
			"no editor specified, use the --editor flag or set the EDITOR environment " +
				"variable",
		)
	}
	tempFile, err := os.CreateTemp("", "*.json")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tempFile.Name())
	_, err = tempFile.Write(input)
	if err != nil {
		return nil, err
	}
	editorArgs, err := shlex.Split(editor)
	if err != nil {
		return nil, err
	}
	if len(editorArgs) == 0 {
		return nil, fmt.Errorf("invalid editor '%s'", editor)
	}
	editorArgs = append(editorArgs, tempFile.Name())
	cmd := exec.Command(editorArgs[0], editorArgs[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	err = cmd.Run()
	if err != nil {
		return nil, err
	}
	_, err = tempFile.Seek(0, 0)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(tempFile)
}

// Returns the attributes whose value the editor changed, attributes added in
// the editor are ignored
func editAttributes(
	editor string, preAttributes map[string]interface{},
) (map[string]interface{}, error) {
	body, err := json.MarshalIndent(preAttributes, "", "  ")
	if err != nil {
		return nil, err
	}
	body, err = invokeEditor(body, editor)
	if err != nil {
		return nil, err
	}
	var postAttributes map[string]interface{}
	err = json.Unmarshal(body, &postAttributes)
	if err != nil {
		return nil, fmt.Errorf("edited attributes are not valid JSON: %w", err)
	}
	for field, postValue := range postAttributes {
		preValue, exists := preAttributes[field]
		if !exists || reflect.DeepEqual(preValue, postValue) {
			delete(postAttributes, field)
		}
	}
	return postAttributes, nil
}

/*
EditCommand
Open the attributes of a resource in an editor and PATCH the ones that changed.
*/
func EditCommand(api *jsonapi.Connection, arguments EditCommandArguments) error {
	resource, err := api.Get(arguments.Type, arguments.Id)
	if err != nil {
		return err
	}

	changed, err := editAttributes(arguments.Editor, resource.Attributes)
	if err != nil {
		return err
	}
	if len(changed) == 0 {
		pterm.Info.Println("Nothing changed")
		return nil
	}

	_, err = api.Update(jsonapi.ResourceObject{
		Type:       resource.Type,
		Id:         resource.Id,
		Attributes: changed,
	})
	if err != nil {
		return err
	}
	pterm.Success.Printfln(
		"Updated %d attribute(s) of %s:%s",
		len(changed), resource.Type, resource.Id,
	)
	return nil
}
