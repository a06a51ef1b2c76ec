// Package registry holds the domain knowledge the engine and
// aggregator consult: which document types a set profile expects, and
// which UCP 600 article each rule cites.
package registry

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/tradedocs/internal/model"
)

// Registry is the loaded rule/profile registry.
type Registry struct {
	// Profiles maps a profile name to the document types a set must
	// contain to be complete.
	Profiles map[string][]model.DocumentType `yaml:"profiles"`

	// UCPReferences maps a discrepancy type to the UCP 600 article
	// cited on emitted discrepancies.
	UCPReferences map[string]string `yaml:"ucp_references"`
}

// Default returns the built-in registry used when no YAML file is
// configured. References follow the UCP 600 articles the source
// ruleset cites for each check.
func Default() *Registry {
	return &Registry{
		Profiles: map[string][]model.DocumentType{
			"default": {
				model.DocTypeCommercialInvoice,
				model.DocTypeLetterOfCredit,
				model.DocTypeBillOfLading,
			},
		},
		UCPReferences: map[string]string{
			model.DiscrepancyAmountMismatch:      "UCP600 Art. 18(b)",
			model.DiscrepancyDateDiscrepancy:     "UCP600 Art. 14(c)",
			model.DiscrepancyDocumentMissing:     "UCP600 Art. 14(a)",
			model.DiscrepancyDescriptionMismatch: "UCP600 Art. 14(e)",
		},
	}
}

// Load reads a registry from a YAML file, filling gaps from Default.
// An empty path returns Default unchanged.
func Load(path string) (*Registry, error) {
	def := Default()
	if path == "" {
		return def, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read %s", path)
	}

	// The YAML has a top-level "registry" key.
	var wrapper struct {
		Registry Registry `yaml:"registry"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "registry: parse")
	}

	reg := &wrapper.Registry
	if len(reg.Profiles) == 0 {
		reg.Profiles = def.Profiles
	}
	if reg.UCPReferences == nil {
		reg.UCPReferences = map[string]string{}
	}
	for k, v := range def.UCPReferences {
		if _, ok := reg.UCPReferences[k]; !ok {
			reg.UCPReferences[k] = v
		}
	}
	return reg, nil
}

// ExpectedTypes returns the expected document types for a profile,
// falling back to the default profile.
func (r *Registry) ExpectedTypes(profile string) []model.DocumentType {
	if types, ok := r.Profiles[profile]; ok {
		return types
	}
	return r.Profiles["default"]
}

// UCPReference returns the UCP article cited for a discrepancy type.
func (r *Registry) UCPReference(discrepancyType string) string {
	return r.UCPReferences[discrepancyType]
}
