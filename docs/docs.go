// Package docs embeds the router's OpenAPI description.
package docs

import (
	_ "embed"
)

//go:embed openapi.yaml
var OpenAPI []byte
