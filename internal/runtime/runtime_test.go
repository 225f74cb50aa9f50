package runtime

import (
	"context"
	"testing"

	"gcli2api-go/internal/credential"

	"github.com/stretchr/testify/require"
)

type memSource struct {
	creds []*credential.Credential
}

func (s *memSource) Name() string { return "mem" }

func (s *memSource) Load(ctx context.Context) ([]*credential.Credential, error) {
	return s.creds, nil
}

func newTestManager(t *testing.T, creds ...*credential.Credential) *credential.Manager {
	t.Helper()
	mgr := credential.NewManager(credential.Options{Sources: []credential.CredentialSource{&memSource{creds: creds}}})
	require.NoError(t, mgr.LoadCredentials())
	return mgr
}
