package agent

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Catalog holds the supervisor instructions and the researcher descriptor.
// Prompts may contain a {date} placeholder.
type Catalog struct {
	Supervisor struct {
		Instructions string `yaml:"instructions"`
	} `yaml:"supervisor"`
	Researcher SubAgent `yaml:"researcher"`
}

// LoadCatalog parses a YAML prompt catalog.
func LoadCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse prompt catalog: %w", err)
	}
	if strings.TrimSpace(c.Supervisor.Instructions) == "" {
		return nil, fmt.Errorf("prompt catalog: supervisor instructions are required")
	}
	if c.Researcher.Name == "" {
		return nil, fmt.Errorf("prompt catalog: researcher name is required")
	}
	return &c, nil
}

// DefaultCatalog returns the embedded prompt catalog.
func DefaultCatalog() *Catalog {
	c, err := LoadCatalog(defaultPrompts)
	if err != nil {
		panic(err)
	}
	return c
}

// SupervisorInstructions renders the supervisor prompt for the given day.
func (c *Catalog) SupervisorInstructions(now time.Time) string {
	return withDate(c.Supervisor.Instructions, now)
}

// ResearcherAgent renders the researcher descriptor for the given day.
func (c *Catalog) ResearcherAgent(now time.Time) SubAgent {
	sa := c.Researcher
	sa.Prompt = withDate(sa.Prompt, now)
	return sa
}

func withDate(prompt string, now time.Time) string {
	return strings.ReplaceAll(prompt, "{date}", now.Format("Mon Jan 2, 2006"))
}
