package routing

import (
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envInterpPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([^}]*))?\}`)

// interpolateEnv expands `${VAR:default}` / `${VAR}` references against the
// process environment, the backend-definitions YAML's documented
// interpolation syntax (spec §6). A reference to an unset var with no
// default expands to the empty string.
func interpolateEnv(raw []byte) []byte {
	return envInterpPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		groups := envInterpPattern.FindSubmatch(match)
		name := string(groups[1])
		def := string(groups[2])
		if v, ok := os.LookupEnv(name); ok {
			return []byte(v)
		}
		return []byte(def)
	})
}

// LoadRoutingFile reads and parses a model-routing YAML document at path.
// Rule keys are normalized to lowercase so lookups can ignore case.
func LoadRoutingFile(path string) (*RoutingFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f RoutingFile
	if err := yaml.Unmarshal(interpolateEnv(raw), &f); err != nil {
		return nil, err
	}
	normalized := make(map[string]Rule, len(f.Rules))
	for k, v := range f.Rules {
		normalized[strings.ToLower(strings.TrimSpace(k))] = v
	}
	f.Rules = normalized
	return &f, nil
}

// LoadBackendsFile reads and parses a backend-definitions YAML document at
// path, expanding `${VAR:default}` references (e.g. for base URLs and API
// keys sourced from the environment).
func LoadBackendsFile(path string) (*BackendsFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f BackendsFile
	if err := yaml.Unmarshal(interpolateEnv(raw), &f); err != nil {
		return nil, err
	}
	return &f, nil
}
