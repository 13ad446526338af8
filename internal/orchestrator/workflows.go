package orchestrator

import (
	"context"
	"fmt"

	"dealflow/internal/agent"
	"dealflow/internal/llm"
)

// QualificationThreshold is the minimum scout score that keeps a company
// in the sourcing funnel. Below it no downstream agent is invoked.
const QualificationThreshold = 50

// SourcingSummary combines the qualified-deal fields surfaced to callers.
type SourcingSummary struct {
	Score     float64  `json:"score"`
	ValueLow  float64  `json:"value_low"`
	ValueHigh float64  `json:"value_high"`
	Signals   []string `json:"signals"`
	Risks     []string `json:"risks"`
}

// SourcingResult is the outcome of the sourcing workflow. A business
// rejection (low score, compliance denial) is a successful run with
// Qualified false; Error is set only when an agent itself failed.
type SourcingResult struct {
	Success    bool
	Qualified  bool
	Reason     string
	Violations []string
	Summary    *SourcingSummary
	Steps      map[string]agent.Result
}

// RunSourcing scores a company against a thesis and, when it qualifies,
// enriches it and runs valuation and the regulatory check in parallel.
//
// When the regulatory check denies approval the valuation has already
// been paid for: both branches are dispatched together and there is no
// cancellation of a sibling once one result is known. The valuation cost
// is accepted as sunk.
func (o *Orchestrator) RunSourcing(ctx context.Context, thesis, company map[string]any) SourcingResult {
	o.metrics.IncActiveWorkflows()
	defer o.metrics.DecActiveWorkflows()

	steps := make(map[string]agent.Result)

	scout := o.ExecuteAgent(ctx, agent.AgentScout, map[string]any{
		"thesis":  thesis,
		"company": company,
	}, nil)
	steps[agent.AgentScout] = scout

	if !scout.Success {
		return SourcingResult{
			Success:   true,
			Qualified: false,
			Reason:    fmt.Sprintf("scoring failed: %s", scout.Error),
			Steps:     steps,
		}
	}

	score, ok := scout.Output.Number("score")
	if !ok {
		return SourcingResult{
			Success:   true,
			Qualified: false,
			Reason:    "scoring output carried no usable score",
			Steps:     steps,
		}
	}
	if score < QualificationThreshold {
		o.logger.Info("company below threshold: score=%.0f", score)
		return SourcingResult{
			Success:   true,
			Qualified: false,
			Reason:    fmt.Sprintf("score %.0f below qualification threshold %d", score, QualificationThreshold),
			Steps:     steps,
		}
	}

	enrich := o.ExecuteAgent(ctx, agent.AgentEnricher, company, map[string]any{
		"thesis":  thesis,
		"scoring": outputValue(scout.Output),
	})
	steps[agent.AgentEnricher] = enrich
	if !enrich.Success {
		return SourcingResult{
			Success: false,
			Reason:  fmt.Sprintf("enrichment failed: %s", enrich.Error),
			Steps:   steps,
		}
	}

	par := o.ExecuteParallel(ctx,
		[]string{agent.AgentValuator, agent.AgentCompliance},
		map[string]any{"company": company, "enrichment": outputValue(enrich.Output)},
		map[string]any{"thesis": thesis, "scoring": outputValue(scout.Output)},
	)
	for id, result := range par.Results {
		steps[id] = result
	}

	check := par.Results[agent.AgentCompliance]
	if !check.Success {
		return SourcingResult{
			Success: false,
			Reason:  fmt.Sprintf("regulatory check failed: %s", check.Error),
			Steps:   steps,
		}
	}
	if approved, _ := check.Output.Bool("approved"); !approved {
		return SourcingResult{
			Success:    true,
			Qualified:  false,
			Reason:     "regulatory check denied approval",
			Violations: check.Output.Strings("violations"),
			Steps:      steps,
		}
	}

	valuation := par.Results[agent.AgentValuator]
	if !valuation.Success {
		return SourcingResult{
			Success: false,
			Reason:  fmt.Sprintf("valuation failed: %s", valuation.Error),
			Steps:   steps,
		}
	}

	valueLow, _ := valuation.Output.Number("value_low")
	valueHigh, _ := valuation.Output.Number("value_high")
	risks := append(scout.Output.Strings("risks"), check.Output.Strings("violations")...)

	return SourcingResult{
		Success:   true,
		Qualified: true,
		Summary: &SourcingSummary{
			Score:     score,
			ValueLow:  valueLow,
			ValueHigh: valueHigh,
			Signals:   scout.Output.Strings("signals"),
			Risks:     risks,
		},
		Steps: steps,
	}
}

// OutreachResult is the outcome of the outreach workflow.
type OutreachResult struct {
	Success    bool
	Approved   bool
	Violations []string
	Draft      *llm.Output
	Error      string
	Steps      map[string]agent.Result
}

// RunOutreach gates message drafting behind the regulatory check. A
// denial skips the drafting agent entirely; approval forwards the prior
// context plus an explicit complianceApproved marker.
func (o *Orchestrator) RunOutreach(ctx context.Context, company map[string]any, priorContext map[string]any) OutreachResult {
	o.metrics.IncActiveWorkflows()
	defer o.metrics.DecActiveWorkflows()

	steps := make(map[string]agent.Result)

	check := o.ExecuteAgent(ctx, agent.AgentCompliance, map[string]any{
		"action":  "outreach",
		"company": company,
	}, priorContext)
	steps[agent.AgentCompliance] = check

	if !check.Success {
		return OutreachResult{
			Success: false,
			Error:   fmt.Sprintf("regulatory check failed: %s", check.Error),
			Steps:   steps,
		}
	}
	if approved, _ := check.Output.Bool("approved"); !approved {
		return OutreachResult{
			Success:    true,
			Approved:   false,
			Violations: check.Output.Strings("violations"),
			Steps:      steps,
		}
	}

	draftContext := cloneContext(priorContext)
	if draftContext == nil {
		draftContext = make(map[string]any, 1)
	}
	draftContext["complianceApproved"] = true

	draft := o.ExecuteAgent(ctx, agent.AgentOutreach, company, draftContext)
	steps[agent.AgentOutreach] = draft
	if !draft.Success {
		return OutreachResult{
			Success: false,
			Error:   fmt.Sprintf("drafting failed: %s", draft.Error),
			Steps:   steps,
		}
	}

	return OutreachResult{Success: true, Approved: true, Draft: draft.Output, Steps: steps}
}

// RunDiligence reviews diligence documents for one company.
func (o *Orchestrator) RunDiligence(ctx context.Context, companyID string, documents []string, vertical string) agent.Result {
	o.metrics.IncActiveWorkflows()
	defer o.metrics.DecActiveWorkflows()

	return o.ExecuteAgent(ctx, agent.AgentDiligence, map[string]any{
		"company_id": companyID,
		"documents":  documents,
		"vertical":   vertical,
	}, nil)
}

// RunIntegration drafts an integration plan from closed-deal data.
func (o *Orchestrator) RunIntegration(ctx context.Context, deal map[string]any) agent.Result {
	o.metrics.IncActiveWorkflows()
	defer o.metrics.DecActiveWorkflows()

	return o.ExecuteAgent(ctx, agent.AgentIntegrator, deal, nil)
}
