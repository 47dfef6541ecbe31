package platforms

import (
	"testing"

	"github.com/bayonhq/ai-visibility-bot/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestBuildQueries_FullProfile(t *testing.T) {
	agent := models.AgentContext{
		Name:        "Jordan Ellis",
		Location:    "Austin, TX",
		Specialties: []string{"luxury condos", "relocations"},
		Competitors: []string{"Casey Tran"},
	}

	queries := BuildQueries(DefaultQueryTemplates, agent)

	assert.Len(t, queries, len(DefaultQueryTemplates))
	assert.Equal(t, "Who are the best real estate agents in Austin, TX?", queries[0])
	assert.Equal(t, "Can you recommend a real estate agent specializing in luxury condos near Austin, TX?", queries[1])
	assert.Equal(t, "What do you know about Jordan Ellis, a real estate agent in Austin, TX?", queries[2])
	assert.Equal(t, "How does Jordan Ellis compare to Casey Tran for home buyers in Austin, TX?", queries[3])
}

func TestBuildQueries_MissingFieldsGetFallbacks(t *testing.T) {
	queries := BuildQueries([]string{
		"Who is {name} in {location}?",
		"Recommend someone for {specialty}.",
	}, models.AgentContext{})

	assert.Equal(t, []string{
		"Who is a local real estate agent in an unspecified area?",
		"Recommend someone for residential real estate.",
	}, queries)
}

func TestBuildQueries_CompetitorTemplatesSkippedWithoutCompetitor(t *testing.T) {
	agent := models.AgentContext{Name: "Jordan Ellis", Location: "Austin, TX"}

	queries := BuildQueries(DefaultQueryTemplates, agent)

	// The comparison template is dropped, not rendered with a blank.
	assert.Len(t, queries, len(DefaultQueryTemplates)-1)
	for _, query := range queries {
		assert.NotContains(t, query, "{competitor}")
		assert.NotContains(t, query, "compare")
	}
}

func TestBuildQueries_EmptyTemplates(t *testing.T) {
	queries := BuildQueries(nil, models.AgentContext{Name: "Jordan Ellis"})
	assert.Empty(t, queries)
}

func TestBuildQueries_RepeatedPlaceholders(t *testing.T) {
	queries := BuildQueries([]string{"{name} vs {name} in {location} and {location}"},
		models.AgentContext{Name: "Jordan Ellis", Location: "Austin"})

	assert.Equal(t, []string{"Jordan Ellis vs Jordan Ellis in Austin and Austin"}, queries)
}
