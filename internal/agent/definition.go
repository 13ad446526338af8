package agent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition is the immutable configuration of one agent: identity
// metadata plus the instructions and sampling parameters sent with every
// request. Definitions are built once at startup and shared read-only.
type Definition struct {
	ID              string  `yaml:"id"`
	DisplayName     string  `yaml:"display_name"`
	Role            string  `yaml:"role"`
	Description     string  `yaml:"description"`
	Instructions    string  `yaml:"instructions"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	Temperature     float64 `yaml:"temperature"`
}

// Agent identifiers. The roster is a closed set; the orchestrator rejects
// anything else before touching the network.
const (
	AgentScout      = "scout"
	AgentResolver   = "resolver"
	AgentEnricher   = "enricher"
	AgentValuator   = "valuator"
	AgentCompliance = "compliance"
	AgentOutreach   = "outreach"
	AgentDiligence  = "diligence"
	AgentIntegrator = "integrator"
)

// DefaultRoster returns the built-in agent definitions. Temperatures are
// deliberately uneven: entity resolution and compliance run near-greedy,
// message drafting runs warm.
func DefaultRoster() []Definition {
	return []Definition{
		{
			ID:          AgentScout,
			DisplayName: "Deal Scout",
			Role:        "scoring",
			Description: "Scores a company against an investment thesis",
			Instructions: "You are an acquisition scout for a private equity firm. " +
				"Given an investment thesis and a raw company record, score the fit from 0 to 100. " +
				"Respond with a JSON object: {\"score\": <0-100>, \"signals\": [<positive indicators>], " +
				"\"risks\": [<concerns>], \"rationale\": <one paragraph>}.",
			MaxOutputTokens: 1024,
			Temperature:     0.3,
		},
		{
			ID:          AgentResolver,
			DisplayName: "Entity Resolver",
			Role:        "entity_resolution",
			Description: "Decides whether two company records describe the same entity",
			Instructions: "You resolve business entities. Given two company records, decide whether they " +
				"describe the same real-world company. Respond with a JSON object: " +
				"{\"match\": <bool>, \"confidence\": <0-1>, \"canonical_name\": <string>, \"evidence\": [<strings>]}.",
			MaxOutputTokens: 512,
			Temperature:     0.1,
		},
		{
			ID:          AgentEnricher,
			DisplayName: "Company Enricher",
			Role:        "enrichment",
			Description: "Expands a raw company record with inferred operating detail",
			Instructions: "You enrich company profiles for deal teams. Given a company record and any prior " +
				"analysis, infer operating detail. Respond with a JSON object: " +
				"{\"employees\": <estimate>, \"revenue_estimate\": <usd>, \"business_model\": <string>, " +
				"\"technologies\": [<strings>], \"summary\": <paragraph>}.",
			MaxOutputTokens: 1536,
			Temperature:     0.4,
		},
		{
			ID:          AgentValuator,
			DisplayName: "Valuation Analyst",
			Role:        "valuation",
			Description: "Produces an indicative valuation range",
			Instructions: "You are a valuation analyst. Given a company profile and enrichment context, produce " +
				"an indicative range. Respond with a JSON object: {\"value_low\": <usd>, \"value_high\": <usd>, " +
				"\"multiple\": <number>, \"method\": <string>, \"assumptions\": [<strings>]}.",
			MaxOutputTokens: 1024,
			Temperature:     0.2,
		},
		{
			ID:          AgentCompliance,
			DisplayName: "Regulatory Check",
			Role:        "compliance",
			Description: "Flags regulatory and policy violations before a step proceeds",
			Instructions: "You are a compliance reviewer. Given a proposed action and its context, check for " +
				"regulatory or policy violations (solicitation rules, sanctioned sectors, data handling). " +
				"Respond with a JSON object: {\"approved\": <bool>, \"violations\": [<strings>], \"notes\": <string>}.",
			MaxOutputTokens: 768,
			Temperature:     0.1,
		},
		{
			ID:          AgentOutreach,
			DisplayName: "Outreach Drafter",
			Role:        "outreach",
			Description: "Drafts first-contact messages to company owners",
			Instructions: "You draft warm, specific first-contact messages from an acquirer to a company owner. " +
				"Use the context to personalize. Respond with a JSON object: " +
				"{\"subject\": <string>, \"body\": <string>, \"tone\": <string>}.",
			MaxOutputTokens: 1024,
			Temperature:     0.6,
		},
		{
			ID:          AgentDiligence,
			DisplayName: "Diligence Analyst",
			Role:        "diligence",
			Description: "Reviews diligence documents for findings and red flags",
			Instructions: "You run document diligence. Given a company id, document excerpts, and the vertical, " +
				"extract findings. Respond with a JSON object: {\"findings\": [<strings>], " +
				"\"red_flags\": [<strings>], \"recommendation\": <proceed|hold|pass>}.",
			MaxOutputTokens: 2048,
			Temperature:     0.2,
		},
		{
			ID:          AgentIntegrator,
			DisplayName: "Integration Planner",
			Role:        "integration",
			Description: "Drafts a post-close integration plan",
			Instructions: "You plan post-acquisition integration. Given closed-deal data, draft the first-hundred-days " +
				"plan. Respond with a JSON object: {\"plan\": [<ordered steps>], \"timeline_weeks\": <number>, " +
				"\"risks\": [<strings>]}.",
			MaxOutputTokens: 2048,
			Temperature:     0.3,
		},
	}
}

// overlayEntry carries the overridable subset of a definition. Zero
// values mean "keep the default".
type overlayEntry struct {
	Instructions    string   `yaml:"instructions"`
	MaxOutputTokens int      `yaml:"max_output_tokens"`
	Temperature     *float64 `yaml:"temperature"`
}

// LoadOverlay reads a YAML file mapping agent id to overrides and applies
// it to the roster. A missing file is not an error; an unknown agent id is.
func LoadOverlay(path string, roster []Definition) ([]Definition, error) {
	if path == "" {
		return roster, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return roster, nil
		}
		return nil, fmt.Errorf("read agent overlay: %w", err)
	}

	var overlay map[string]overlayEntry
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse agent overlay: %w", err)
	}

	byID := make(map[string]int, len(roster))
	for i, def := range roster {
		byID[def.ID] = i
	}

	out := append([]Definition(nil), roster...)
	for id, entry := range overlay {
		idx, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("agent overlay references unknown agent %q", id)
		}
		if entry.Instructions != "" {
			out[idx].Instructions = entry.Instructions
		}
		if entry.MaxOutputTokens > 0 {
			out[idx].MaxOutputTokens = entry.MaxOutputTokens
		}
		if entry.Temperature != nil {
			out[idx].Temperature = *entry.Temperature
		}
	}
	return out, nil
}
