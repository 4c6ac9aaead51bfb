// Copyright (c) 2026 TownSpark. All rights reserved.
// Author: platform@townspark.app

package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"sort"
)

// encodeMultipart builds a multipart/form-data body from scalar fields and
// file parts.
//
// # Parameters
//   - data: Scalar form fields (struct or map; stringified per field).
//   - files: Named file parts, each consumed exactly once.
//
// # Returns
//   - []byte: The encoded body.
//   - string: The boundary-bearing content type from the multipart writer.
//   - error: Encoding failures.
func encodeMultipart(data any, files map[string]File) ([]byte, string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	fields, err := flattenFields(data)
	if err != nil {
		return nil, "", err
	}

	// Deterministic part order keeps recorded requests diffable.
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := writer.WriteField(name, fields[name]); err != nil {
			return nil, "", fmt.Errorf("client: failed to write form field %q: %w", name, err)
		}
	}

	fileNames := make([]string, 0, len(files))
	for name := range files {
		fileNames = append(fileNames, name)
	}
	sort.Strings(fileNames)

	for _, field := range fileNames {
		file := files[field]
		part, err := writer.CreateFormFile(field, file.Name)
		if err != nil {
			return nil, "", fmt.Errorf("client: failed to create file part %q: %w", field, err)
		}
		if _, err := io.Copy(part, file.Reader); err != nil {
			return nil, "", fmt.Errorf("client: failed to copy file part %q: %w", field, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("client: failed to finalize multipart body: %w", err)
	}

	return buf.Bytes(), writer.FormDataContentType(), nil
}

// flattenFields converts the data value into stringified form fields via a
// JSON round-trip. Nested objects and arrays are kept as JSON text, which
// is how the backend expects compound fields inside multipart bodies.
func flattenFields(data any) (map[string]string, error) {
	fields := map[string]string{}
	if data == nil {
		return fields, nil
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("client: failed to encode form fields: %w", err)
	}

	values := map[string]json.RawMessage{}
	if err := json.Unmarshal(encoded, &values); err != nil {
		return nil, fmt.Errorf("client: form data must be an object: %w", err)
	}

	for name, raw := range values {
		if string(raw) == "null" {
			continue
		}

		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			fields[name] = s
			continue
		}

		// Numbers, booleans, objects, arrays: send the JSON text itself.
		fields[name] = string(raw)
	}

	return fields, nil
}
