package routes

import (
	"github.com/danielgtaylor/huma/v2"

	steamhandler "github.com/janisto/steam-gateway/internal/http/v1/steam"
)

// NewConfig returns the huma configuration shared by the server and tests.
//
// The default schema link transformer is removed: it re-encodes bodies through
// a generated wrapper type, bypassing their own marshalers, and adds a
// `$schema` key the front-end does not expect.
func NewConfig(title, version string) huma.Config {
	cfg := huma.DefaultConfig(title, version)
	cfg.DocsPath = "/api-docs"
	cfg.CreateHooks = nil
	return cfg
}

// Register wires all HTTP routes into the provided API router.
func Register(api huma.API, steamService steamhandler.Aggregator) {
	steamhandler.Register(api, steamService)
}
