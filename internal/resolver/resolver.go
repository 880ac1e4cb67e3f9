// Package resolver maps partial, human-supplied lead references to one canonical lead.
//
// The chain short-circuits at the first step that yields candidates:
// explicit id, exact email, exact phone, last seven phone digits, then a
// case-insensitive name fragment. Multi-candidate steps rank by recent activity,
// then by smallest id, so the same input always resolves to the same lead.
package resolver

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/bluewise/internal/guardrails"
	"github.com/bluewise/internal/store"
	"github.com/bluewise/pkg/models"
)

// Match reasons
const (
	ReasonLeadID     = "lead_id"
	ReasonEmail      = "email_exact"
	ReasonPhone      = "phone_exact"
	ReasonPhoneLast7 = "phone_last7"
	ReasonName       = "name_ilike"
	ReasonNotFound   = "not_found"
)

const (
	defaultLimit = 5
	maxLimit     = 10
	fetchLimit   = 50
	minPhoneRun  = 7
)

// Query holds whatever identifiers the caller has
type Query struct {
	LeadID int64
	Name   string
	Email  string
	Phone  string
	// Text is free text typed into a generic search box
	Text  string
	Limit int
}

// Resolution is the ranked outcome of a lookup
type Resolution struct {
	LeadID      int64                  `json:"leadId"`
	MatchReason string                 `json:"matchReason"`
	Candidates  []models.LeadCandidate `json:"-"`
}

// Found reports whether a lead was resolved
func (r Resolution) Found() bool { return r.LeadID != 0 }

// Top returns the winning candidate
func (r Resolution) Top() (models.LeadCandidate, bool) {
	if len(r.Candidates) == 0 {
		return models.LeadCandidate{}, false
	}
	return r.Candidates[0], true
}

type step struct {
	reason string
	field  store.MatchField
	value  string
}

// Resolve runs the resolution chain within the tenant
func Resolve(ctx context.Context, tenant store.Tenant, q Query) (Resolution, error) {
	guardrails.RequireTenant(tenant.CustomerID)
	logger := zerolog.Ctx(ctx)

	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	if q.LeadID > 0 {
		lead, err := tenant.Data.GetLead(ctx, tenant.CustomerID, q.LeadID)
		switch {
		case err == nil:
			cands, err := WithActivity(ctx, tenant, []models.Lead{lead})
			if err != nil {
				return Resolution{}, err
			}
			return Resolution{LeadID: lead.ID, MatchReason: ReasonLeadID, Candidates: cands}, nil
		case errors.Is(err, store.ErrNotFound):
			logger.Debug().Int64("lead_id", q.LeadID).Msg("Lead id not in tenant, trying other identifiers")
		default:
			return Resolution{}, models.NewExternalFailure("Failed to load leads.", err)
		}
	}

	email, phone, name := q.Email, q.Phone, q.Name
	if text := strings.TrimSpace(q.Text); text != "" {
		if email == "" {
			email = EmailIn(text)
		}
		if phone == "" {
			phone = PhoneIn(text)
		}
		if name == "" {
			name = text
		}
	}

	var steps []step
	if e := store.NormalizeEmail(email); e != "" {
		steps = append(steps, step{ReasonEmail, store.MatchEmail, e})
	}
	if digits := store.NormalizePhone(phone); digits != "" {
		steps = append(steps, step{ReasonPhone, store.MatchPhone, digits})
		steps = append(steps, step{ReasonPhoneLast7, store.MatchPhoneLast7, store.Last7(digits)})
	}
	if n := strings.TrimSpace(name); n != "" {
		steps = append(steps, step{ReasonName, store.MatchName, n})
	}

	for _, s := range steps {
		leads, err := tenant.Data.MatchLeads(ctx, tenant.CustomerID, store.LeadMatch{Field: s.field, Value: s.value, Limit: fetchLimit})
		if err != nil {
			return Resolution{}, models.NewExternalFailure("Failed to load leads.", err)
		}
		if len(leads) == 0 {
			continue
		}

		cands, err := WithActivity(ctx, tenant, leads)
		if err != nil {
			return Resolution{}, err
		}
		SortByRecency(cands)
		if len(cands) > limit {
			cands = cands[:limit]
		}

		logger.Debug().
			Str("match_reason", s.reason).
			Int("candidates", len(cands)).
			Int64("lead_id", cands[0].Lead.ID).
			Msg("Lead resolved")
		return Resolution{LeadID: cands[0].Lead.ID, MatchReason: s.reason, Candidates: cands}, nil
	}

	return Resolution{MatchReason: ReasonNotFound, Candidates: []models.LeadCandidate{}}, nil
}

// WithActivity pairs leads with their folded inbox activity
func WithActivity(ctx context.Context, tenant store.Tenant, leads []models.Lead) ([]models.LeadCandidate, error) {
	ids := make([]int64, len(leads))
	for i, l := range leads {
		ids[i] = l.ID
	}
	rows, err := tenant.Data.LeadActivity(ctx, tenant.CustomerID, ids)
	if err != nil {
		return nil, models.NewExternalFailure("Failed to load lead activity.", err)
	}
	folded := models.FoldActivity(rows)

	out := make([]models.LeadCandidate, len(leads))
	for i, l := range leads {
		out[i] = models.LeadCandidate{Lead: l, Activity: folded[l.ID]}
	}
	return out, nil
}

// SortByRecency orders candidates most recent first, ties by smallest id
func SortByRecency(cands []models.LeadCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		ri, rj := cands[i].Recency(), cands[j].Recency()
		if !ri.Equal(rj) {
			return ri.After(rj)
		}
		return cands[i].Lead.ID < cands[j].Lead.ID
	})
}

// EmailIn returns the first token of text that looks like an email address
func EmailIn(text string) string {
	for _, tok := range strings.Fields(text) {
		if !strings.Contains(tok, "@") {
			continue
		}
		tok = strings.TrimFunc(tok, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if at := strings.Index(tok, "@"); at > 0 && at < len(tok)-1 {
			return strings.ToLower(tok)
		}
	}
	return ""
}

// PhoneIn returns the digits of the first run in text holding at least seven digits.
// Spaces, dashes, dots, parentheses and a plus sign may separate the digits.
func PhoneIn(text string) string {
	var run strings.Builder
	flush := func() string {
		digits := run.String()
		run.Reset()
		if len(digits) >= minPhoneRun {
			return digits
		}
		return ""
	}
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9':
			run.WriteRune(r)
		case run.Len() > 0 && strings.ContainsRune(" -.()+", r):
		case r == '+' || r == '(':
		default:
			if d := flush(); d != "" {
				return d
			}
		}
	}
	return flush()
}
