package router

import (
	"strings"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// classifierOrder fixes the order in which keyword sets are checked.
// Executive work is checked first so it wins over operational matches.
var classifierOrder = []models.TaskType{
	models.TaskTypeEnterpriseAssessment,
	models.TaskTypeStrategicPlanning,
	models.TaskTypeMarketAnalysis,
	models.TaskTypeSalesForecast,
	models.TaskTypeCampaignPlanning,
	models.TaskTypeClientOnboarding,
	models.TaskTypeProposalGeneration,
	models.TaskTypePricingAnalysis,
	models.TaskTypeSEOAudit,
	models.TaskTypeContentCreation,
	models.TaskTypeLeadQualification,
}

// defaultKeywords are words that indicate each task type in a free-text description.
var defaultKeywords = map[models.TaskType][]string{
	models.TaskTypeEnterpriseAssessment: {"enterprise", "assessment", "fortune 500", "due diligence"},
	models.TaskTypeStrategicPlanning:    {"strategy", "strategic", "roadmap", "vision"},
	models.TaskTypeMarketAnalysis:       {"market analysis", "competitor", "market research", "industry trend"},
	models.TaskTypeSalesForecast:        {"forecast", "pipeline review", "quota"},
	models.TaskTypeCampaignPlanning:     {"campaign", "marketing plan", "launch"},
	models.TaskTypeClientOnboarding:     {"onboard", "kickoff", "welcome"},
	models.TaskTypeProposalGeneration:   {"proposal", "rfp", "statement of work"},
	models.TaskTypePricingAnalysis:      {"pricing", "quote", "discount", "price"},
	models.TaskTypeSEOAudit:             {"seo", "keyword ranking", "backlink", "search ranking"},
	models.TaskTypeContentCreation:      {"blog", "content", "copywriting", "newsletter"},
	models.TaskTypeLeadQualification:    {"lead", "prospect", "inbound"},
}

// DescriptionKeys are the payload keys read by the classifier.
var DescriptionKeys = []string{"description", "request", "summary"}

// Classifier infers a task type from free text in the payload.
type Classifier struct {
	keywords map[models.TaskType][]string
}

// NewClassifier creates a Classifier with the default keyword sets.
func NewClassifier() *Classifier {
	kw := make(map[models.TaskType][]string, len(defaultKeywords))
	for tt, words := range defaultKeywords {
		kw[tt] = append([]string{}, words...)
	}
	return &Classifier{keywords: kw}
}

// Classify returns the first task type whose keywords appear in the
// payload's description fields. ok is false when nothing matched.
func (c *Classifier) Classify(payload models.Payload) (models.TaskType, bool) {
	text := c.text(payload)
	if text == "" {
		return models.TaskTypeDefault, false
	}
	for _, tt := range classifierOrder {
		for _, kw := range c.keywords[tt] {
			if strings.Contains(text, kw) {
				return tt, true
			}
		}
	}
	return models.TaskTypeDefault, false
}

func (c *Classifier) text(payload models.Payload) string {
	var parts []string
	for _, key := range DescriptionKeys {
		if s, ok := payload.String(key); ok && s != "" {
			parts = append(parts, s)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}
