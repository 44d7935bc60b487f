package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// downloadPostSchema describes the body of POST /api/v1/download/post
const downloadPostSchema = `{
	"type": "object",
	"required": ["post_id"],
	"properties": {
		"post_id": {
			"type": "string",
			"minLength": 1,
			"maxLength": 64,
			"pattern": "^[A-Za-z0-9_-]+$"
		},
		"target_directory": {
			"type": ["string", "null"]
		}
	}
}`

var downloadPostValidator = jsonschema.MustCompileString("inmemory://download-post.json", downloadPostSchema)

// decodeDownloadPost parses and validates a request body
func decodeDownloadPost(body []byte) (*DownloadPostRequest, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("malformed JSON body: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("malformed JSON body: trailing data")
	}

	if err := downloadPostValidator.Validate(payload); err != nil {
		return nil, fmt.Errorf("invalid request body: %s", validationMessage(err))
	}

	var req DownloadPostRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	return &req, nil
}

// validationMessage flattens a schema error into its innermost causes
func validationMessage(err error) string {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}

	leaf := verr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	location := leaf.InstanceLocation
	if location == "" {
		location = "/"
	}
	return fmt.Sprintf("%s: %s", location, leaf.Message)
}
