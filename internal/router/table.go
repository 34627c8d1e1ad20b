package router

import "github.com/ShayCichocki/switchboard/pkg/models"

// DefaultWorkerID is the worker that receives tasks no table entry claims.
const DefaultWorkerID = "lead_qualification"

// Table maps each task type to the worker that handles it.
type Table map[models.TaskType]string

// DefaultTable returns the reference routing table.
func DefaultTable() Table {
	return Table{
		models.TaskTypeEnterpriseAssessment: "business_development_director",
		models.TaskTypeStrategicPlanning:    "chief_strategy_officer",
		models.TaskTypeMarketAnalysis:       "market_intelligence_director",
		models.TaskTypeCampaignPlanning:     "marketing_manager",
		models.TaskTypeSalesForecast:        "sales_manager",
		models.TaskTypeClientOnboarding:     "account_manager",
		models.TaskTypeLeadQualification:    "lead_qualification",
		models.TaskTypeProposalGeneration:   "proposal_writer",
		models.TaskTypePricingAnalysis:      "pricing_analyst",
		models.TaskTypeSEOAudit:             "seo_specialist",
		models.TaskTypeContentCreation:      "content_creator",
		models.TaskTypeDefault:              DefaultWorkerID,
	}
}

// Target returns the worker for a task type, falling back to the Default entry.
func (t Table) Target(tt models.TaskType) string {
	if id, ok := t[tt]; ok && id != "" {
		return id
	}
	if id, ok := t[models.TaskTypeDefault]; ok && id != "" {
		return id
	}
	return DefaultWorkerID
}

// Workers returns the distinct worker ids referenced by the table.
func (t Table) Workers() []string {
	seen := make(map[string]struct{}, len(t))
	var out []string
	for _, id := range t {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
