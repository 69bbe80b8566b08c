// Package planner classifies a user query into a reasoning strategy, an
// intent tag consumed by the routing rules, and a candidate source set. Two
// planners are provided: a deterministic keyword planner (primary) and an LLM
// classifier that maps its verdict onto the same vocabulary and fails closed
// to a conservative plan.
package planner

// Candidate source identifiers. These are the single vocabulary shared by the
// planner, the routing rules, and the gateway's tool grouping.
const (
	SourceLocal        = "local"
	SourceSearchEngine = "search_engine"
	SourceCloudEngine  = "cloud_engine"
)

// Intent tags matched against agent routing rules.
const (
	IntentHardwareSupport = "hardware_support"
	IntentWebResearch     = "web_research"
	IntentHelpdeskOps     = "helpdesk_ops"
	IntentGeneral         = "general"
)

// sourcesForIntent is the explicit intent-to-source mapping. The classifier
// and the keyword planner both resolve through it so their vocabularies
// cannot drift apart.
func sourcesForIntent(intent string) []string {
	switch intent {
	case IntentHardwareSupport:
		return []string{SourceLocal}
	case IntentWebResearch:
		return []string{SourceLocal, SourceSearchEngine, SourceCloudEngine}
	case IntentHelpdeskOps:
		return []string{SourceCloudEngine}
	default:
		return []string{SourceLocal}
	}
}
