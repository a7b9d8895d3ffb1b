// Package schemas embeds the HTTP API description.
package schemas

import _ "embed"

// OpenAPISpec is the raw openapi.yaml document.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
