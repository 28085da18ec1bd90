package agent

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/guildhq/guild/pkg/models"
)

//go:embed personas.yaml
var personasYAML []byte

var (
	personasOnce sync.Once
	personas     map[string]string
	personasErr  error
)

// Persona returns the system prompt for an agent role. The personas file is
// embedded at build time, so a missing or malformed file is a programmer
// error surfaced on first use.
func Persona(agentType models.AgentType) (string, error) {
	personasOnce.Do(func() {
		personas = make(map[string]string)
		personasErr = yaml.Unmarshal(personasYAML, &personas)
	})
	if personasErr != nil {
		return "", fmt.Errorf("parse personas: %w", personasErr)
	}
	p, ok := personas[string(agentType)]
	if !ok {
		return "", fmt.Errorf("no persona for agent type %s", agentType)
	}
	return p, nil
}

// mustPersona returns the persona or a generic fallback prompt. Role
// constructors use it so a persona lookup can never fail agent startup.
func mustPersona(agentType models.AgentType) string {
	p, err := Persona(agentType)
	if err != nil {
		return fmt.Sprintf("You are the %s agent in a software delivery team.", agentType)
	}
	return p
}
