// Package discovery defines the agent card protocol: static capability
// descriptors published by specialists at a well-known path and fetched by
// the router.
package discovery

// WellKnownPath is the path suffix, relative to a specialist's discovery
// base URL, at which its card is served.
const WellKnownPath = "/.well-known/agent-card"

// Endpoint describes one callable endpoint advertised in a card.
type Endpoint struct {
	URL                   string `json:"url"`
	Method                string `json:"method"`
	RequestSchemaSummary  string `json:"request_schema_summary"`
	ResponseSchemaSummary string `json:"response_schema_summary"`
}

// Endpoints groups the endpoints a specialist advertises.
type Endpoints struct {
	ExecuteTask Endpoint `json:"execute_task"`
}

// Card is a specialist's static capability descriptor. Immutable once
// published.
type Card struct {
	AgentName           string    `json:"agent_name"`
	Version             string    `json:"version"`
	Description         string    `json:"description"`
	CapabilitiesSummary []string  `json:"capabilities_summary"`
	Endpoints           Endpoints `json:"endpoints"`
}

// NewCard assembles a card for a specialist served under baseURL. The
// execute endpoint is derived from the service's public base URL so remote
// routers can reach it.
func NewCard(agentName, version, description string, capabilities []string, baseURL string) Card {
	return Card{
		AgentName:           agentName,
		Version:             version,
		Description:         description,
		CapabilitiesSummary: capabilities,
		Endpoints: Endpoints{
			ExecuteTask: Endpoint{
				URL:                   baseURL + "/" + agentName + "/query",
				Method:                "POST",
				RequestSchemaSummary:  "{'query': 'string'} (expects X-Session-Id in header for this specific endpoint)",
				ResponseSchemaSummary: "{'final_agent_utterance': 'string', ...}",
			},
		},
	}
}
