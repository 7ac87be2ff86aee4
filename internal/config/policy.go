package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RoutingPolicy is the optional YAML file that tunes classifier vocabularies
// and caller-facing prompts without a redeploy.
type RoutingPolicy struct {
	Vocabulary VocabularyPolicy `yaml:"vocabulary"`
	Prompts    PromptPolicy     `yaml:"prompts"`
	// FirstContactSpamThreshold is the minimum oracle spam probability
	// required before a first-contact message may be labelled spam.
	FirstContactSpamThreshold int `yaml:"first_contact_spam_threshold"`
}

type VocabularyPolicy struct {
	Greetings        []string `yaml:"greetings"`
	Acknowledgements []string `yaml:"acknowledgements"`
	Urgency          []string `yaml:"urgency"`
	Emergency        []string `yaml:"emergency"`
	Scheduling       []string `yaml:"scheduling"`
}

type PromptPolicy struct {
	Screen    string `yaml:"screen"`
	Voicemail string `yaml:"voicemail"`
	Rejected  string `yaml:"rejected"`
}

// LoadPolicy reads a routing policy file. An empty path yields the zero
// policy, which callers merge over their built-in defaults.
func LoadPolicy(path string) (RoutingPolicy, error) {
	if path == "" {
		return RoutingPolicy{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return RoutingPolicy{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return ParsePolicy(data)
}

// ParsePolicy unmarshals YAML bytes into a validated RoutingPolicy.
func ParsePolicy(data []byte) (RoutingPolicy, error) {
	var p RoutingPolicy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return RoutingPolicy{}, fmt.Errorf("config: parse policy: %w", err)
	}
	if p.FirstContactSpamThreshold < 0 || p.FirstContactSpamThreshold > 100 {
		return RoutingPolicy{}, fmt.Errorf("config: first_contact_spam_threshold must be within 0..100, got %d", p.FirstContactSpamThreshold)
	}
	return p, nil
}
