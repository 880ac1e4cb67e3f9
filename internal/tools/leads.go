package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bluewise/internal/resolver"
	"github.com/bluewise/internal/store"
	"github.com/bluewise/pkg/models"
)

const (
	listDefaultLimit = 50
	listMaxLimit     = 200
	listFetchLimit   = 1000
)

func (r *Registry) listLeadsTool() Tool {
	return Tool{
		Name:        ListLeads,
		Description: "Get CRM leads, enriched with conversation activity (last contact, missed calls).",
		Parameters: object(map[string]any{
			"status":            enum("Lead status filter; open excludes closed, dead, lost and won", "open", "new", "active", "quoted", "won", "lost", "all"),
			"no_reply_hours":    number("Only leads without contact for at least this many hours"),
			"missed_calls_only": boolean("Only leads with missed calls"),
			"source":            str("Lead source"),
			"limit":             integer("Maximum rows, default 50"),
		}),
		Run: r.runListLeads,
	}
}

func (r *Registry) runListLeads(ctx context.Context, tenant store.Tenant, args Args) (models.Envelope, error) {
	leads, err := tenant.Data.ListLeads(ctx, tenant.CustomerID, store.LeadFilter{
		Status: args.String("status"),
		Source: args.String("source"),
		Limit:  listFetchLimit,
	})
	if err != nil {
		return models.Envelope{}, models.NewExternalFailure("Failed to fetch CRM leads.", err)
	}

	cands, err := resolver.WithActivity(ctx, tenant, leads)
	if err != nil {
		// activity enrichment is optional
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Lead activity unavailable, listing without it")
		cands = make([]models.LeadCandidate, len(leads))
		for i, l := range leads {
			cands[i] = models.LeadCandidate{Lead: l}
		}
	}

	var cutoff time.Time
	if hours, ok := args.Float("no_reply_hours"); ok && hours > 0 {
		cutoff = r.now().Add(-time.Duration(hours * float64(time.Hour)))
	}
	missedOnly := args.Bool("missed_calls_only")

	filtered := cands[:0]
	for _, c := range cands {
		if missedOnly && c.Activity.MissedCallCount <= 0 {
			continue
		}
		if !cutoff.IsZero() && c.Activity.LastContactAt != nil && !c.Activity.LastContactAt.Before(cutoff) {
			continue
		}
		filtered = append(filtered, c)
	}
	resolver.SortByRecency(filtered)

	limit := clamp(args.Int("limit"), listDefaultLimit, 1, listMaxLimit)
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	items := make([]models.Item, len(filtered))
	for i, c := range filtered {
		items[i] = models.NewLeadRow(c)
	}
	return models.Envelope{
		Intent:     ListLeads,
		ResultType: models.ResultLeadList,
		Title:      "Lead list",
		Items:      items,
		AISummary:  LeadListSummary("", args, len(items)),
	}, nil
}

// LeadListSummary describes a list_leads result. The question is quoted when known.
func LeadListSummary(question string, args Args, count int) string {
	var parts []string
	if hours, ok := args.Float("no_reply_hours"); ok {
		parts = append(parts, fmt.Sprintf("no reply for at least %sh", trimFloat(hours)))
	}
	if args.Bool("missed_calls_only") {
		parts = append(parts, "with missed calls")
	}
	if status := args.String("status"); status != "" && status != "all" {
		parts = append(parts, "status: "+status)
	}
	if source := args.String("source"); source != "" {
		parts = append(parts, "source: "+source)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d lead(s)", count)
	if q := strings.TrimSpace(question); q != "" {
		fmt.Fprintf(&b, " for: %q", q)
	}
	if len(parts) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	}
	b.WriteString(".")
	return b.String()
}

func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

func (r *Registry) findLeadTool() Tool {
	return Tool{
		Name:        FindLead,
		Description: "Search and resolve a lead by identifier. Returns ranked matches, most recent activity first.",
		Parameters: object(map[string]any{
			"query": str("Free text: a name, email or phone number"),
			"email": str("Exact email"),
			"phone": str("Phone number in any format"),
			"name":  str("Name or fragment of it"),
			"limit": integer("Maximum matches, default 5"),
		}),
		Run: r.runFindLead,
	}
}

func (r *Registry) runFindLead(ctx context.Context, tenant store.Tenant, args Args) (models.Envelope, error) {
	res, err := resolver.Resolve(ctx, tenant, resolver.Query{
		Text:  args.String("query"),
		Email: args.String("email"),
		Phone: args.String("phone"),
		Name:  args.String("name"),
		Limit: int(args.Int("limit")),
	})
	if err != nil {
		return models.Envelope{}, err
	}

	items := make([]models.Item, len(res.Candidates))
	for i, c := range res.Candidates {
		items[i] = models.NewLeadRow(c)
	}
	summary := "No matching leads found."
	if res.Found() {
		summary = fmt.Sprintf("Found %d matching lead(s). Top match lead #%d.", len(items), res.LeadID)
	}
	return models.Envelope{
		Intent:     FindLead,
		ResultType: models.ResultLeadList,
		Title:      "Lead search results",
		Items:      items,
		AISummary:  summary,
	}, nil
}

// resolveLead runs the resolver on the lead selector of a tool call
func resolveLead(ctx context.Context, tenant store.Tenant, args Args) (resolver.Resolution, error) {
	name := args.String("lead_name")
	if name == "" {
		name = args.String("name")
	}
	return resolver.Resolve(ctx, tenant, resolver.Query{
		LeadID: args.Int("lead_id"),
		Name:   name,
		Email:  args.String("email"),
		Phone:  args.String("phone"),
	})
}

// matchedBy is the " (matched by R)" suffix shown when a lead was not picked by id
func matchedBy(reason string) string {
	if reason == "" || reason == resolver.ReasonLeadID {
		return ""
	}
	return fmt.Sprintf(" (matched by %s)", reason)
}
