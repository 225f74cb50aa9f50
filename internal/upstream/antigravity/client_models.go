package antigravity

import "context"

// knownModels lists the base models routed to Antigravity per the
// model-family heuristics in the routing layer (gemini-* natively, plus the
// Claude/GPT aliases Antigravity fronts when no sibling backend claims them
// first). Antigravity does not expose a public model-catalog endpoint the
// way Code Assist's v1/models does, so this list is maintained by hand
// rather than discovered.
var knownModels = []string{
	"gemini-3-pro",
	"gemini-3-flash",
	"gemini-2.5-pro",
	"gemini-2.5-flash",
	"claude-sonnet-4.5",
	"claude-sonnet-4",
	"gpt-5",
}

// ListModels returns the static set of models this backend is known to
// serve. projectID is accepted for interface parity with gemini.Client but
// unused: Antigravity's catalog isn't scoped per Google Cloud project.
func (c *Client) ListModels(_ context.Context, _ string) ([]string, error) {
	out := make([]string, len(knownModels))
	copy(out, knownModels)
	return out, nil
}
