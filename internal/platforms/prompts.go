package platforms

import (
	"strings"

	"github.com/bayonhq/ai-visibility-bot/internal/models"
	"github.com/sirupsen/logrus"
)

// Fallback values substituted into query templates when agent profile fields
// are missing. Substitutions are warnings, not errors.
const (
	fallbackName      = "a local real estate agent"
	fallbackLocation  = "an unspecified area"
	fallbackSpecialty = "residential real estate"
)

// DefaultQueryTemplates is the out-of-the-box template set for new users.
var DefaultQueryTemplates = []string{
	"Who are the best real estate agents in {location}?",
	"Can you recommend a real estate agent specializing in {specialty} near {location}?",
	"What do you know about {name}, a real estate agent in {location}?",
	"How does {name} compare to {competitor} for home buyers in {location}?",
}

// BuildQueries renders the templates against the agent context. Missing
// profile fields are substituted with generic fallbacks (logged as warnings);
// comparison templates referencing a competitor are skipped entirely when no
// competitor is configured, so they are neither attempted nor billed.
func BuildQueries(templates []string, agent models.AgentContext) []string {
	name := agent.Name
	if name == "" {
		name = fallbackName
		logrus.Warn("Agent name missing, substituting generic role label")
	}

	location := agent.Location
	if location == "" {
		location = fallbackLocation
		logrus.Warn("Agent location missing, substituting unknown location marker")
	}

	specialty := fallbackSpecialty
	if len(agent.Specialties) > 0 {
		specialty = agent.Specialties[0]
	} else {
		logrus.Warn("Agent specialties missing, substituting default specialty")
	}

	var queries []string
	for _, template := range templates {
		if strings.Contains(template, "{competitor}") {
			if len(agent.Competitors) == 0 {
				logrus.Warnf("Skipping comparison query with no competitor configured: %s", template)
				continue
			}
			template = strings.ReplaceAll(template, "{competitor}", agent.Competitors[0])
		}

		query := strings.ReplaceAll(template, "{name}", name)
		query = strings.ReplaceAll(query, "{location}", location)
		query = strings.ReplaceAll(query, "{specialty}", specialty)
		queries = append(queries, query)
	}

	return queries
}
