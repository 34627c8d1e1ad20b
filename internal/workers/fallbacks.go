package workers

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// Local heuristics. Each reads a few well-known payload keys and never fails.

func number(p models.Payload, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := p.Number(k); ok {
			return v, true
		}
	}
	return 0, false
}

func text(p models.Payload, key string) string {
	if s, ok := p.String(key); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func qualifyLead(p models.Payload) models.Payload {
	score := 20.0
	if budget, ok := number(p, "budget"); ok && budget > 0 {
		score += math.Min(30, budget/1000)
	}
	if employees, ok := number(p, "employees", "company_size"); ok {
		switch {
		case employees >= 1000:
			score += 25
		case employees >= 100:
			score += 15
		case employees >= 10:
			score += 5
		}
	}
	if dm, ok := p["decision_maker"].(bool); ok && dm {
		score += 15
	}
	if strings.Contains(strings.ToLower(text(p, "timeline")), "quarter") {
		score += 10
	}
	score = math.Min(score, 100)
	return models.Payload{
		"qualification_score": score,
		"qualified":           score >= 50,
	}
}

func assessEnterprise(p models.Payload) models.Payload {
	value, ok := number(p, "budget", "deal_value")
	if !ok || value <= 0 {
		employees, _ := number(p, "employees", "company_size")
		value = math.Max(25000, employees*1000)
	}
	recommendation := "nurture"
	if value >= 50000 {
		recommendation = "pursue"
	}
	return models.Payload{
		"deal_value":     round2(value),
		"fit_score":      math.Min(100, 40+value/5000),
		"recommendation": recommendation,
	}
}

func planStrategy(p models.Payload) models.Payload {
	initiatives := []any{"retain core accounts", "expand into adjacent segments"}
	if goal := text(p, "goal"); goal != "" {
		initiatives = append([]any{goal}, initiatives...)
	}
	priority := "medium"
	if v, ok := number(p, "forecast_value", "deal_value"); ok && v >= 250000 {
		priority = "high"
	}
	return models.Payload{
		"strategic_priority": priority,
		"initiatives":        initiatives,
		"horizon_months":     12.0,
	}
}

func analyzeMarket(p models.Payload) models.Payload {
	size, ok := number(p, "market_size")
	if !ok {
		size = 1_000_000
	}
	score := 50.0
	switch strings.ToLower(text(p, "growth")) {
	case "high":
		score += 25
	case "low":
		score -= 20
	}
	return models.Payload{
		"market_score":     score,
		"opportunity_size": round2(size * 0.05),
		"segments":         []any{"enterprise", "mid-market"},
	}
}

func planCampaign(p models.Payload) models.Payload {
	budget, ok := number(p, "campaign_budget", "budget")
	if !ok || budget <= 0 {
		budget = 10000
	} else if _, explicit := p["campaign_budget"]; !explicit {
		budget *= 0.2
	}
	return models.Payload{
		"campaign_budget": round2(budget),
		"expected_leads":  math.Floor(budget / 250),
		"channels":        []any{"email", "search", "events"},
	}
}

func forecastSales(p models.Payload) models.Payload {
	var forecast float64
	if monthly, ok := number(p, "monthly_revenue"); ok {
		forecast = monthly * 12
	} else if v, ok := number(p, "contract_value", "deal_value", "estimated_value"); ok {
		forecast = v * 1.2
	}
	return models.Payload{
		"forecast_value": round2(forecast),
		"confidence":     0.5,
		"period_months":  12.0,
	}
}

func onboardClient(p models.Payload) models.Payload {
	steps := []any{"kickoff call", "account provisioning", "training", "30 day review"}
	health := 70.0
	if v, ok := number(p, "contract_value", "deal_value"); ok && v >= 100000 {
		steps = append(steps, "assign dedicated success manager")
		health = 75
	}
	return models.Payload{
		"onboarding_plan": steps,
		"health_score":    health,
	}
}

func writeProposal(p models.Payload) models.Payload {
	h := fnv.New32a()
	h.Write([]byte(text(p, "company")))
	out := models.Payload{
		"proposal_id": fmt.Sprintf("prop-%08x", h.Sum32()),
		"sections":    []any{"summary", "scope", "pricing", "timeline"},
	}
	if v, ok := number(p, "contract_value", "recommended_price", "deal_value"); ok {
		out["estimated_value"] = round2(v)
	}
	return out
}

func analyzePricing(p models.Payload) models.Payload {
	base, ok := number(p, "deal_value", "budget")
	if !ok || base <= 0 {
		base = 25000
	}
	discount := 0.0
	if v, ok := number(p, "qualification_score"); ok && v >= 80 {
		discount = 0.05
	}
	price := round2(base * (1 - discount))
	return models.Payload{
		"recommended_price": price,
		"contract_value":    price,
		"discount":          discount,
	}
}

func auditSEO(p models.Payload) models.Payload {
	issues := []any{}
	url := text(p, "url")
	if !strings.HasPrefix(url, "https://") {
		issues = append(issues, "site is not served over https")
	}
	if text(p, "meta_description") == "" {
		issues = append(issues, "missing meta description")
	}
	return models.Payload{
		"seo_score": math.Max(0, 90-20*float64(len(issues))),
		"issues":    issues,
	}
}

func createContent(p models.Payload) models.Payload {
	topic := text(p, "topic")
	if topic == "" {
		topic = text(p, "company")
	}
	return models.Payload{
		"content_pieces": []any{
			fmt.Sprintf("blog: %s overview", topic),
			fmt.Sprintf("email: why %s now", topic),
		},
		"word_count": 1200.0,
	}
}
