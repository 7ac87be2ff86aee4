package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Vocabulary is the word lists behind the deterministic rule layer.
// Empty lists fall back to the built-in defaults.
type Vocabulary struct {
	Greetings        []string
	Acknowledgements []string
	Urgency          []string
	Emergency        []string
	Scheduling       []string
}

func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Greetings: []string{
			"hi", "hey", "hello", "hiya", "yo", "sup", "hola", "howdy",
			"good morning", "good afternoon", "good evening", "morning", "greetings",
		},
		Acknowledgements: []string{
			"ok", "okay", "k", "kk", "thanks", "thank you", "thx", "ty", "cool",
			"got it", "sounds good", "sure", "yes", "no", "yep", "nope", "lol",
			"haha", "np", "will do", "great", "perfect", "👍",
		},
		Urgency: []string{
			"urgent", "asap", "immediately", "right away", "critical", "important",
			"call me", "call back", "need you", "help",
		},
		Emergency: []string{
			"emergency", "911", "ambulance", "hospital", "accident",
			"police", "bleeding", "can't breathe",
		},
		Scheduling: []string{
			"meeting", "meet", "appointment", "schedule", "reschedule", "deadline",
			"due", "today", "tonight", "tomorrow", "next week", "noon", "midnight",
			"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
			"calendar", "available", "availability",
		},
	}
}

// timeExpr matches absolute and relative time expressions.
var timeExpr = regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}\s*(am|pm)?\b|\b\d{1,2}\s*(am|pm)\b|\b(in|within)\s+\d+\s*(min|mins|minutes?|hours?|hrs?|days?|weeks?)\b|\b\d{1,2}/\d{1,2}(/\d{2,4})?\b`)

// spamMarkers disqualify a message from the short-greeting fast path.
var spamMarkers = []string{"http", "$"}

// wonMarker is "won" as a whole word; "won't" and "wonderful" do not count.
var wonMarker = regexp.MustCompile(`(?i)(^|[^\pL\pN'’])won($|[^\pL\pN'’])`)

const shortMessageRunes = 20

const defaultFirstContactSpamThreshold = 70

// Policy compiles a Vocabulary into matchers.
type Policy struct {
	greetingOnly  *regexp.Regexp
	greetingLead  *regexp.Regexp
	ackOnly       *regexp.Regexp
	urgency       *regexp.Regexp
	emergency     *regexp.Regexp
	scheduling    *regexp.Regexp
	spamThreshold int
}

// NewPolicy builds a Policy. threshold is the minimum oracle spam
// probability for a first-contact SPAM verdict; <= 0 uses the default.
func NewPolicy(v Vocabulary, threshold int) *Policy {
	def := DefaultVocabulary()
	if len(v.Greetings) == 0 {
		v.Greetings = def.Greetings
	}
	if len(v.Acknowledgements) == 0 {
		v.Acknowledgements = def.Acknowledgements
	}
	if len(v.Urgency) == 0 {
		v.Urgency = def.Urgency
	}
	if len(v.Emergency) == 0 {
		v.Emergency = def.Emergency
	}
	if len(v.Scheduling) == 0 {
		v.Scheduling = def.Scheduling
	}
	if threshold <= 0 {
		threshold = defaultFirstContactSpamThreshold
	}

	g := alternation(v.Greetings)
	return &Policy{
		greetingOnly: regexp.MustCompile(`(?i)^\s*(` + g + `)(\s+(there|all|everyone|friend))?[\s.!?,:;)(~\-]*$`),
		// A greeting followed by at most four short words ("hi it's sam").
		greetingLead:  regexp.MustCompile(`(?i)^\s*(` + g + `)\b[\s.!?,:;\-]*([\w']+[\s.!?,:;\-]*){0,4}$`),
		ackOnly:       regexp.MustCompile(`(?i)^\s*(` + alternation(v.Acknowledgements) + `)[\s.!?,:;)(~\-]*$`),
		urgency:       wordMatcher(v.Urgency),
		emergency:     wordMatcher(v.Emergency),
		scheduling:    wordMatcher(v.Scheduling),
		spamThreshold: threshold,
	}
}

func alternation(words []string) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		parts = append(parts, regexp.QuoteMeta(w))
	}
	if len(parts) == 0 {
		// Matches nothing.
		return `[^\s\S]`
	}
	return strings.Join(parts, "|")
}

func wordMatcher(words []string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(^|[^\pL\pN])(` + alternation(words) + `)($|[^\pL\pN])`)
}

func hasSpamMarker(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range spamMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return wonMarker.MatchString(text)
}

// IsShortGreeting is the first-contact hard override: short or greeting-like
// messages without spam markers are always held, never spam.
func (p *Policy) IsShortGreeting(text string) bool {
	t := strings.TrimSpace(text)
	if hasSpamMarker(t) {
		return false
	}
	if utf8.RuneCountInString(t) <= shortMessageRunes {
		return true
	}
	return p.greetingLead.MatchString(t)
}

// IsAcknowledgement matches messages that are only a greeting or an ack.
func (p *Policy) IsAcknowledgement(text string) bool {
	return p.ackOnly.MatchString(text) || p.greetingOnly.MatchString(text)
}

// IsEmergency reports emergency intent in free text.
func (p *Policy) IsEmergency(text string) bool {
	return p.emergency.MatchString(text)
}

// EffectivePriority is the deterministic notification priority. It runs
// before the oracle's own judgment, which is only a fallback.
func (p *Policy) EffectivePriority(text string, oracle Priority) Priority {
	switch {
	case p.IsAcknowledgement(text):
		return PriorityLow
	case p.urgency.MatchString(text), p.emergency.MatchString(text):
		return PriorityHigh
	case p.scheduling.MatchString(text), timeExpr.MatchString(text):
		return PriorityHigh
	case oracle.Valid():
		return oracle
	default:
		return PriorityMedium
	}
}
