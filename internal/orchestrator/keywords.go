package orchestrator

import "strings"

// Keywords are the phrase lists used to detect intent in a question. An entry holding
// "+" matches only when every part is present, e.g. "update+follow".
type Keywords struct {
	Draft      []string `koanf:"draft" json:"draft"`
	SummaryRef []string `koanf:"summary_ref" json:"summary_ref"`
	Send       []string `koanf:"send" json:"send"`
	Update     []string `koanf:"update" json:"update"`
}

// DefaultKeywords are the English and French lists
func DefaultKeywords() Keywords {
	return Keywords{
		Draft: []string{"draft", "write an", "write a", "compose", "reply", "email reply", "sms", "text"},
		SummaryRef: []string{
			"this summary", "that summary", "based on this summary", "from this summary",
			"for this summary", "based on the summary", "from the summary",
		},
		Send: []string{"send", "send it", "text it", "email it", "envoie", "envoyer"},
		Update: []string{
			"cancel", "annule", "completed", "complété", "complete it", "mark it done", "mark as done",
			"update+follow", "update+tâche", "resched", "move+follow", "déplace+rappel",
		},
	}
}

// withDefaults fills empty lists from DefaultKeywords
func (k Keywords) withDefaults() Keywords {
	d := DefaultKeywords()
	if len(k.Draft) == 0 {
		k.Draft = d.Draft
	}
	if len(k.SummaryRef) == 0 {
		k.SummaryRef = d.SummaryRef
	}
	if len(k.Send) == 0 {
		k.Send = d.Send
	}
	if len(k.Update) == 0 {
		k.Update = d.Update
	}
	return k
}

// intent is what the keyword lists say about one question
type intent struct {
	draft      bool
	summaryRef bool
	send       bool
	update     bool
}

func (k Keywords) detect(question string) intent {
	q := strings.ToLower(question)
	return intent{
		draft:      containsAny(q, k.Draft),
		summaryRef: containsAny(q, k.SummaryRef),
		send:       containsAny(q, k.Send),
		update:     containsAny(q, k.Update),
	}
}

// forceDraft reports whether the draft tool should be forced on the model
func (i intent) forceDraft() bool {
	return i.draft && !i.update && !i.send
}

func containsAny(q string, phrases []string) bool {
	for _, p := range phrases {
		if matchPhrase(q, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func matchPhrase(q, phrase string) bool {
	if phrase == "" {
		return false
	}
	for _, part := range strings.Split(phrase, "+") {
		part = strings.TrimSpace(part)
		if part == "" || !strings.Contains(q, part) {
			return false
		}
	}
	return true
}
