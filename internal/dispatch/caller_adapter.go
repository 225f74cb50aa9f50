package dispatch

import (
	"context"
	"encoding/json"
	"net/http"

	"gcli2api-go/internal/credential"
	"gcli2api-go/internal/upstream"
)

// ManagerCaller adapts an upstream.Manager's registered providers to the
// Caller interface Execute needs: it resolves Target.Backend's model to a
// provider via ProviderFor and issues Stream or Generate depending on
// AttemptInput.Stream.
type ManagerCaller struct {
	manager   *upstream.Manager
	projectID func(cred *credential.Credential) string
}

// NewManagerCaller builds a ManagerCaller. projectID is optional; when nil,
// every request carries an empty ProjectID (providers that need one resolve
// it internally from the credential).
func NewManagerCaller(manager *upstream.Manager, projectID func(cred *credential.Credential) string) *ManagerCaller {
	return &ManagerCaller{manager: manager, projectID: projectID}
}

func (c *ManagerCaller) Call(ctx context.Context, cred *credential.Credential, target Target, req AttemptInput) (*http.Response, error) {
	provider := c.manager.ProviderByName(target.Backend)
	if provider == nil {
		provider = c.manager.ProviderFor(target.Model)
	}
	if provider == nil {
		return nil, errNoProvider{backend: target.Backend, model: target.Model}
	}

	project := ""
	if c.projectID != nil {
		project = c.projectID(cred)
	}

	// target.Model and project vary per attempt (different fallback-chain
	// link, different rotated-to credential); req.Body is the shared
	// translated request payload, re-wrapped fresh for each attempt rather
	// than baked once by the caller.
	innerRequest := json.RawMessage(req.Body)
	if len(innerRequest) == 0 {
		innerRequest = json.RawMessage("null")
	}
	wire, _ := json.Marshal(map[string]any{
		"model":   target.Model,
		"project": project,
		"request": innerRequest,
	})

	rc := upstream.RequestContext{
		Ctx:             ctx,
		Credential:      cred,
		BaseModel:       target.Model,
		ProjectID:       project,
		Body:            wire,
		HeaderOverrides: req.Headers,
	}

	var out upstream.ProviderResponse
	if req.Stream {
		out = provider.Stream(rc)
	} else {
		out = provider.Generate(rc)
	}
	if out.Err != nil {
		return out.Resp, out.Err
	}
	return out.Resp, nil
}

type errNoProvider struct {
	backend string
	model   string
}

func (e errNoProvider) Error() string {
	return "dispatch: no provider registered for backend " + e.backend + " model " + e.model
}
