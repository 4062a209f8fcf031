// Package handler implements the gateway's resources: liveness and
// version probes, an echo endpoint and the bot registry.
package handler

import (
	"encoding/json"

	"github.com/menezmethod/botgate/internal/pipeline"
	"github.com/menezmethod/botgate/internal/version"
)

// Health reports liveness. It answers without the secret and never
// parses a body.
//
//	GET /health
type Health struct{}

// SecretRequired implements pipeline.SecretPolicy.
func (Health) SecretRequired() bool { return false }

// DisableBodyParser implements pipeline.BodyParserOptOut.
func (Health) DisableBodyParser() bool { return true }

// OnGet writes the status document.
func (Health) OnGet(_ *pipeline.Request, resp *pipeline.Response) error {
	body, err := json.Marshal(map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
	if err != nil {
		return err
	}
	resp.Header.Set("Content-Type", "application/json")
	resp.SetBody(string(body))
	return nil
}

// Version reports build metadata without the secret.
//
//	GET /version
type Version struct{}

// SecretRequired implements pipeline.SecretPolicy.
func (Version) SecretRequired() bool { return false }

// OnGet responds with version and commit.
func (Version) OnGet(_ *pipeline.Request, resp *pipeline.Response) error {
	resp.Header.Set("Cache-Control", "no-store")
	resp.JSON = version.Get()
	return nil
}

// Echo responds with the structured request value.
//
//	POST /v1/echo
type Echo struct{}

// OnPost echoes objects and arrays; bare scalars are refused.
func (Echo) OnPost(req *pipeline.Request, resp *pipeline.Response) error {
	switch req.JSON.(type) {
	case map[string]any, []any:
		resp.JSON = req.JSON
		return nil
	default:
		return invalidDocument("Expected a JSON object or array.")
	}
}

// Compile-time interface checks.
var (
	_ pipeline.Getter           = Health{}
	_ pipeline.SecretPolicy     = Health{}
	_ pipeline.BodyParserOptOut = Health{}
	_ pipeline.Getter           = Version{}
	_ pipeline.Poster           = Echo{}
)
