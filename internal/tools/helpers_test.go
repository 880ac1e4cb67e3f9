package tools

import (
	"context"
	"testing"
	"time"

	"github.com/bluewise/internal/guardrails"
	"github.com/bluewise/internal/llm"
	"github.com/bluewise/internal/llm/llmtest"
	"github.com/bluewise/internal/providers/providertest"
	"github.com/bluewise/internal/store"
	"github.com/bluewise/pkg/models"
)

var now = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	mem    *store.Memory
	tenant store.Tenant
	model  *llmtest.FakeModel
	sms    *providertest.SMS
	email  *providertest.Email
	reg    *Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mem := store.NewMemory()
	mem.SetClock(func() time.Time { return now })
	mem.AddLead(models.Lead{ID: 5, CustomerID: 1, Name: "Marc Tremblay", Email: "marc@example.com", Phone: "+1 514 555 0101", Status: "new", Source: "website", CreatedAt: now.Add(-72 * time.Hour)})
	mem.AddLead(models.Lead{ID: 6, CustomerID: 1, Name: "Sophie Marchand", Phone: "+1 438 555 0199", Status: "won", Source: "referral", Language: "fr", CreatedAt: now.Add(-48 * time.Hour)})
	mem.AddLead(models.Lead{ID: 7, CustomerID: 1, Name: "Jean Roy", Phone: "+1 819 555 0123", Status: "active", Source: "website", CreatedAt: now.Add(-24 * time.Hour)})
	mem.AddLead(models.Lead{ID: 9, CustomerID: 2, Name: "Marc Other", Email: "marc@example.com", CreatedAt: now})
	mem.SetCustomerSMSNumber(1, "+15140000000")

	model := &llmtest.FakeModel{}
	sms, email := providertest.Accepting("prov-1")

	reg := NewRegistry(Deps{
		LLM:       llm.NewClient(model, llm.ClientOptions{}),
		SMS:       sms,
		Email:     email,
		Policy:    guardrails.DefaultPolicy(time.UTC),
		EmailFrom: "BlueWise AI <sales@mg.example.com>",
		Now:       func() time.Time { return now },
	})

	return &fixture{
		mem:    mem,
		tenant: store.NewTenant(1, mem),
		model:  model,
		sms:    sms,
		email:  email,
		reg:    reg,
	}
}

func (f *fixture) dispatch(t *testing.T, name, raw string) (models.Envelope, error) {
	t.Helper()
	return f.reg.DispatchRaw(context.Background(), f.tenant, name, raw)
}

func at(d time.Duration) *time.Time {
	v := now.Add(d)
	return &v
}
