package swagger

import _ "embed"

// OpenAPI is the service contract, embedded so the binary can serve it.
//
//go:embed openapi.yaml
var OpenAPI []byte
