// Package extraction derives a structured brand profile from website
// content with the completion model and merges it into the context blob.
package extraction

import "strings"

const profilePrompt = `You are building a structured marketing profile for the company at {{domain}}.

Website content:
{{content}}

Known personas: {{personas}}
Known competitors: {{competitors}}
Tracked queries: {{queries}}

Return ONLY a JSON object with this shape:
{
  "summary": "<two-sentence company summary>",
  "personas": [{"title": "...", "seniority": "...", "function": "...", "priorities": ["..."]}],
  "offers": [{"name": "...", "description": "...", "url": "..."}],
  "theme": {"tone": "..."},
  "positioning": {
    "mission": "...",
    "vision": "...",
    "differentiators": ["..."],
    "pillars": ["..."],
    "elevator_pitches": {"short": "...", "medium": "...", "long": "..."},
    "proof_points": ["..."],
    "objections": ["..."]
  }
}`

const personaPrompt = `Derive up to five buyer personas for the company at {{domain}}.

Company summary: {{summary}}

Return ONLY a JSON array:
[{"title": "...", "seniority": "...", "function": "...", "priorities": ["..."]}]`

const queryFunnelPrompt = `Generate search and AI-assistant queries a buyer would use at each
funnel stage when evaluating {{domain}}.

Company summary: {{summary}}
Personas: {{personas}}

Return ONLY a JSON array:
[{"text": "...", "funnel_stage": "awareness|consideration|decision"}]`

const competitorDiscoveryPrompt = `List direct competitors of the company at {{domain}}.

Company summary: {{summary}}

Return ONLY a JSON array:
[{"name": "...", "domain": "..."}]`

const verticalPrompt = `Classify each query below into a market vertical (one or two words).

Queries:
{{queries}}

Return ONLY a JSON array:
[{"id": "<id>", "vertical": "..."}]`

// VerticalPrompt renders the query classification prompt for a batch of
// queries listed one per line as "id: text".
func VerticalPrompt(queries string) string {
	return renderPrompt(verticalPrompt, map[string]string{"queries": queries})
}

// renderPrompt substitutes {{key}} placeholders in a template.
func renderPrompt(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for key, value := range values {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
