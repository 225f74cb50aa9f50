package translator

import "gcli2api-go/internal/signature"

// SignatureStore is the process-wide thought-signature cache (spec §4.2),
// wired in by server startup. Translators consult it opportunistically and
// degrade to signature-less passthrough when nil, matching the sanitizer's
// package-level-config pattern in sanitizer.go.
var SignatureStore *signature.Cache

// SetSignatureStore installs the signature cache used by the translator
// package. Call once during server wiring.
func SetSignatureStore(c *signature.Cache) {
	SignatureStore = c
}
