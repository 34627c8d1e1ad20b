package workers

import (
	"sort"
	"time"

	"github.com/ShayCichocki/switchboard/internal/agent"
	"github.com/ShayCichocki/switchboard/internal/llm"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

// Models used by each tier.
const (
	ExecutiveModel   = "claude-opus-4-5-20251101"
	ManagementModel  = "claude-sonnet-4-20250514"
	OperationalModel = "claude-3-5-haiku-20241022"
)

const jsonAnalyst = "You are a precise business analyst. You answer with a single JSON object and nothing else."

// Specs returns the reference catalogue, one entry per routing table target,
// sorted by worker id.
func Specs() []Spec {
	specs := []Spec{
		{
			ID:                "business_development_director",
			Tier:              models.TierExecutive,
			Capabilities:      []string{"enterprise_assessment", "partnerships", "deal_strategy"},
			Capacity:          2,
			AvgProcessingTime: 45 * time.Second,
			SLA:               2 * time.Minute,
			SuccessRate:       0.92,
			Model:             ExecutiveModel,
			Role:              "You are a business development director evaluating enterprise opportunities. " + jsonAnalyst,
			Instructions:      "Assess the enterprise opportunity described below. Estimate the deal value in USD, score the fit from 0 to 100 and recommend either \"pursue\" or \"nurture\".",
			Outputs:           []string{"deal_value", "fit_score", "recommendation"},
			Required:          []string{"company"},
			Fallback:          assessEnterprise,
		},
		{
			ID:                "chief_strategy_officer",
			Tier:              models.TierExecutive,
			Capabilities:      []string{"strategic_planning", "portfolio_review"},
			Capacity:          1,
			AvgProcessingTime: time.Minute,
			SLA:               3 * time.Minute,
			SuccessRate:       0.95,
			Model:             ExecutiveModel,
			Role:              "You are a chief strategy officer. " + jsonAnalyst,
			Instructions:      "Draft a twelve month strategic plan for the account below. List concrete initiatives and rate the strategic priority as low, medium or high.",
			Outputs:           []string{"strategic_priority", "initiatives"},
			Fallback:          planStrategy,
		},
		{
			ID:                "market_intelligence_director",
			Tier:              models.TierExecutive,
			Capabilities:      []string{"market_analysis", "competitive_intelligence"},
			Capacity:          2,
			AvgProcessingTime: 50 * time.Second,
			SLA:               2 * time.Minute,
			SuccessRate:       0.90,
			Model:             ExecutiveModel,
			Role:              "You are a market intelligence director. " + jsonAnalyst,
			Instructions:      "Analyze the market described below. Score its attractiveness from 0 to 100, estimate the addressable opportunity in USD and name the most promising segments.",
			Outputs:           []string{"market_score", "opportunity_size", "segments"},
			Fallback:          analyzeMarket,
		},
		{
			ID:                "marketing_manager",
			Tier:              models.TierManagement,
			Capabilities:      []string{"campaign_planning", "brand"},
			Capacity:          3,
			AvgProcessingTime: 30 * time.Second,
			SLA:               90 * time.Second,
			SuccessRate:       0.88,
			Model:             ManagementModel,
			Role:              "You are a marketing manager planning demand generation. " + jsonAnalyst,
			Instructions:      "Plan a campaign for the context below. Give the campaign budget in USD, the expected number of leads and the channels to use.",
			Outputs:           []string{"campaign_budget", "expected_leads", "channels"},
			Fallback:          planCampaign,
		},
		{
			ID:                "sales_manager",
			Tier:              models.TierManagement,
			Capabilities:      []string{"sales_forecast", "pipeline_review"},
			Capacity:          3,
			AvgProcessingTime: 25 * time.Second,
			SLA:               90 * time.Second,
			SuccessRate:       0.90,
			Model:             ManagementModel,
			Role:              "You are a sales manager forecasting revenue. " + jsonAnalyst,
			Instructions:      "Forecast twelve month revenue for the account below. Give the forecast value in USD and your confidence from 0 to 1.",
			Outputs:           []string{"forecast_value", "confidence"},
			Fallback:          forecastSales,
		},
		{
			ID:                "account_manager",
			Tier:              models.TierManagement,
			Capabilities:      []string{"client_onboarding", "retention"},
			Capacity:          4,
			AvgProcessingTime: 20 * time.Second,
			SLA:               time.Minute,
			SuccessRate:       0.93,
			Model:             ManagementModel,
			Role:              "You are an account manager onboarding a new client. " + jsonAnalyst,
			Instructions:      "Write an onboarding plan for the client below as an ordered list of steps and rate the account health from 0 to 100.",
			Outputs:           []string{"onboarding_plan", "health_score"},
			Required:          []string{"company"},
			Fallback:          onboardClient,
		},
		{
			ID:                "lead_qualification",
			Tier:              models.TierOperational,
			Capabilities:      []string{"lead_qualification", "default"},
			Capacity:          8,
			AvgProcessingTime: 8 * time.Second,
			SLA:               30 * time.Second,
			SuccessRate:       0.96,
			Model:             OperationalModel,
			Role:              "You qualify inbound sales leads. " + jsonAnalyst,
			Instructions:      "Qualify the lead below. Score it from 0 to 100 and state whether it is qualified.",
			Outputs:           []string{"qualification_score", "qualified"},
			Fallback:          qualifyLead,
		},
		{
			ID:                "proposal_writer",
			Tier:              models.TierOperational,
			Capabilities:      []string{"proposal_generation"},
			Capacity:          4,
			AvgProcessingTime: 15 * time.Second,
			SLA:               45 * time.Second,
			SuccessRate:       0.91,
			Model:             OperationalModel,
			Role:              "You write commercial proposals. " + jsonAnalyst,
			Instructions:      "Outline a proposal for the deal below. Give a short proposal identifier, the section titles and the estimated contract value in USD.",
			Outputs:           []string{"proposal_id", "sections", "estimated_value"},
			Required:          []string{"company"},
			Fallback:          writeProposal,
		},
		{
			ID:                "pricing_analyst",
			Tier:              models.TierOperational,
			Capabilities:      []string{"pricing_analysis"},
			Capacity:          4,
			AvgProcessingTime: 10 * time.Second,
			SLA:               30 * time.Second,
			SuccessRate:       0.94,
			Model:             OperationalModel,
			Role:              "You are a pricing analyst. " + jsonAnalyst,
			Instructions:      "Price the deal below. Give the recommended price in USD, the expected contract value and any discount as a fraction.",
			Outputs:           []string{"recommended_price", "contract_value"},
			Fallback:          analyzePricing,
		},
		{
			ID:                "seo_specialist",
			Tier:              models.TierOperational,
			Capabilities:      []string{"seo_audit"},
			Capacity:          6,
			AvgProcessingTime: 12 * time.Second,
			SLA:               40 * time.Second,
			SuccessRate:       0.93,
			Model:             OperationalModel,
			Role:              "You are an SEO specialist. " + jsonAnalyst,
			Instructions:      "Audit the site below. Score it from 0 to 100 and list the issues found.",
			Outputs:           []string{"seo_score", "issues"},
			Required:          []string{"url"},
			Fallback:          auditSEO,
		},
		{
			ID:                "content_creator",
			Tier:              models.TierOperational,
			Capabilities:      []string{"content_creation"},
			Capacity:          6,
			AvgProcessingTime: 20 * time.Second,
			SLA:               time.Minute,
			SuccessRate:       0.89,
			Model:             OperationalModel,
			Role:              "You are a content marketer. " + jsonAnalyst,
			Instructions:      "Propose content pieces for the campaign below and estimate the total word count.",
			Outputs:           []string{"content_pieces", "word_count"},
			Fallback:          createContent,
		},
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })
	return specs
}

// Catalogue builds one PromptWorker per spec, all sharing backend.
// A nil backend behaves like llm.Offline.
func Catalogue(backend llm.Completer) []agent.Worker {
	specs := Specs()
	out := make([]agent.Worker, 0, len(specs))
	for _, s := range specs {
		out = append(out, NewPromptWorker(s, backend))
	}
	return out
}

// Descriptors returns the registry metadata of the catalogue.
func Descriptors() []models.WorkerDescriptor {
	specs := Specs()
	out := make([]models.WorkerDescriptor, 0, len(specs))
	for _, s := range specs {
		out = append(out, s.Descriptor())
	}
	return out
}

// SamplePayload is a payload that satisfies every catalogue worker's
// required fields. The probe command uses it by default.
func SamplePayload() models.Payload {
	return models.Payload{
		"company":        "Acme Corp",
		"url":            "https://acme.example",
		"industry":       "software",
		"budget":         75000.0,
		"employees":      250.0,
		"decision_maker": true,
		"timeline":       "this quarter",
	}
}
