package orchestrator

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bluewise/internal/tools"
	"github.com/bluewise/pkg/models"
)

const summaryBridgeNote = "NOTE: User asked to draft based on the most recent conversation summary."

// leadTools act on a single lead and accept the active lead when none is named
var leadTools = map[string]bool{
	tools.SummarizeConversation: true,
	tools.DraftReply:            true,
	tools.CreateTask:            true,
	tools.UpdateTask:            true,
}

// bridge fills in what the model left out but the session already knows
func (o *Orchestrator) bridge(ctx context.Context, s *run, name string, args tools.Args) {
	logger := zerolog.Ctx(ctx)

	if name == tools.DraftReply && s.summaryDraft && !hasLeadSelector(name, args) {
		leadID := s.session.ActiveLeadID
		summary := ""
		if ls := s.session.LastSummary; ls != nil && ls.LeadID > 0 {
			leadID = ls.LeadID
			summary = strings.TrimSpace(ls.Summary)
		}
		if leadID > 0 {
			args["lead_id"] = leadID
			note := summaryBridgeNote
			if summary != "" {
				note += "\n\nConversation summary:\n" + summary
			}
			if extra := args.String("extra_context"); extra != "" {
				note = extra + "\n\n" + note
			}
			args["extra_context"] = note
			logger.Debug().Int64("lead_id", leadID).Bool("summary_injected", summary != "").Msg("Draft bridged to last summary")
		}
	}

	if name == tools.SendMessage && s.intent.send && s.lastDraft != nil {
		fillFromDraft(args, s.lastDraft)
		logger.Debug().Int64("lead_id", args.Int("lead_id")).Msg("Send bridged to last draft")
	}

	if leadTools[name] && !hasLeadSelector(name, args) && s.session.ActiveLeadID > 0 {
		args["lead_id"] = s.session.ActiveLeadID
		logger.Debug().Str("tool", name).Int64("lead_id", s.session.ActiveLeadID).Msg("Using active lead")
	}
}

func hasLeadSelector(name string, args tools.Args) bool {
	if args.Int("lead_id") > 0 {
		return true
	}
	for _, key := range []string{"lead_name", "name", "email", "phone"} {
		if args.Has(key) {
			return true
		}
	}
	return name == tools.UpdateTask && args.Int("task_id") > 0
}

// fillFromDraft completes send_message arguments from the draft. A call aimed at a
// different lead is left alone.
func fillFromDraft(args tools.Args, d *models.LastDraft) {
	if id := args.Int("lead_id"); id != 0 && id != d.LeadID {
		return
	}
	setMissing(args, "lead_id", d.LeadID)
	setMissing(args, "channel", d.Channel)
	setMissing(args, "to", d.To)
	if d.Channel == models.ChannelEmail {
		setMissing(args, "subject", d.Subject)
	}
	setMissing(args, "body", d.Body)
}

func setMissing(args tools.Args, key string, value any) {
	if args.Has(key) {
		return
	}
	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return
		}
	case int64:
		if v == 0 {
			return
		}
	}
	args[key] = value
}

// draftFrom turns the first non-empty variant of a draft_reply result into a LastDraft
func draftFrom(env models.Envelope) *models.LastDraft {
	for _, it := range env.Items {
		d, ok := it.(models.DraftReply)
		if !ok {
			continue
		}
		for _, v := range d.Variants {
			if strings.TrimSpace(v.Body) == "" {
				continue
			}
			return &models.LastDraft{
				LeadID:  d.LeadID,
				Channel: d.Channel,
				To:      d.To,
				Subject: v.Subject,
				Body:    v.Body,
			}
		}
	}
	return nil
}
