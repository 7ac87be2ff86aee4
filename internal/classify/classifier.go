package classify

import (
	"context"
	"errors"
	"strings"
	"time"

	"telecom-inbound/internal/trust"
	"telecom-inbound/pkg/logger"
)

// Input is everything the classifier needs about one inbound message.
type Input struct {
	AccountID string
	Text      string
	Sender    trust.Sender

	// OutboundCount is how many messages the account has sent to the sender.
	OutboundCount int
	History       []HistoryEntry
}

// Result is the classifier's decision. ShouldNotify is the classifier's
// view only; the rule engine may narrow it further but never widen it for SPAM.
type Result struct {
	Category        Category  `json:"category"`
	Trust           TrustTier `json:"trust"`
	SpamProbability int       `json:"spam_probability"`
	IsHeld          bool      `json:"is_held"`
	ShouldNotify    bool      `json:"should_notify"`
	Priority        Priority  `json:"priority"`
	Reason          string    `json:"reason,omitempty"`
	OracleCalls     int       `json:"oracle_calls"`

	// Degraded is set when an oracle failure forced a fail-safe default.
	Degraded bool `json:"degraded,omitempty"`
}

// Classifier runs the three-tier sender procedure:
//  1. saved contact: INBOX without asking the oracle
//  2. established correspondent: one consent-revocation question
//  3. first contact: greeting override, then one conservative spam question
type Classifier struct {
	oracle  Oracle
	policy  *Policy
	timeout time.Duration
}

func NewClassifier(oracle Oracle, policy *Policy, timeout time.Duration) *Classifier {
	if policy == nil {
		policy = NewPolicy(Vocabulary{}, 0)
	}
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &Classifier{oracle: oracle, policy: policy, timeout: timeout}
}

func (c *Classifier) Policy() *Policy { return c.policy }

// Classify never fails: oracle errors resolve to the fail-safe defaults
// (hold unknown senders, deliver known ones).
func (c *Classifier) Classify(ctx context.Context, in Input) Result {
	switch {
	case in.Sender.IsSavedContact || in.Sender.IsFavorite:
		return c.savedContact(in)
	case in.OutboundCount > 0:
		return c.established(ctx, in)
	default:
		return c.firstContact(ctx, in)
	}
}

func (c *Classifier) savedContact(in Input) Result {
	return inbox(TrustHigh, 0, c.policy.EffectivePriority(in.Text, ""), "saved_contact", 0)
}

func (c *Classifier) established(ctx context.Context, in Input) Result {
	if strings.TrimSpace(in.Text) == "" {
		return inbox(TrustMedium, 0, PriorityMedium, "established_no_text", 0)
	}

	v, err := c.ask(ctx, in, ModeEstablished, TrustMedium)
	if err != nil {
		r := inbox(TrustMedium, 0, c.policy.EffectivePriority(in.Text, ""), "oracle_unavailable", 1)
		r.Degraded = true
		return r
	}
	if v.IsSpam {
		return spam(TrustMedium, v.SpamProbability, c.policy.EffectivePriority(in.Text, v.Priority), "consent_revoked_promotional")
	}
	return inbox(TrustMedium, v.SpamProbability, c.policy.EffectivePriority(in.Text, v.Priority), "established_correspondent", 1)
}

func (c *Classifier) firstContact(ctx context.Context, in Input) Result {
	if c.policy.IsShortGreeting(in.Text) {
		return held(0, c.policy.EffectivePriority(in.Text, ""), "short_greeting", 0)
	}

	v, err := c.ask(ctx, in, ModeFirstContact, TrustLow)
	if err != nil {
		r := held(0, c.policy.EffectivePriority(in.Text, ""), "oracle_unavailable", 1)
		r.Degraded = true
		return r
	}
	prio := c.policy.EffectivePriority(in.Text, v.Priority)
	if v.IsSpam && v.SpamProbability >= c.policy.spamThreshold {
		r := spam(TrustLow, v.SpamProbability, prio, "unambiguous_spam")
		return r
	}
	// Ties, low confidence and clean content all stay held for review.
	return held(v.SpamProbability, prio, "first_contact", 1)
}

func (c *Classifier) ask(ctx context.Context, in Input, mode Mode, tier TrustTier) (Verdict, error) {
	log := logger.ForEvent(ctx, in.AccountID, "")
	if c.oracle == nil {
		log.Warn("classification oracle not configured", "mode", mode)
		return Verdict{}, errors.New("classify: oracle not configured")
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	v, err := c.oracle.Classify(callCtx, OracleRequest{
		Text: in.Text,
		Sender: SenderMeta{
			Address:       in.Sender.Address,
			Trust:         tier,
			OutboundCount: in.OutboundCount,
			Tags:          in.Sender.Tags,
		},
		History: in.History,
		Mode:    mode,
	})
	if err == nil {
		v, err = ValidateVerdict(v)
	}
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrClassificationTimeout) {
			err = errors.Join(ErrClassificationTimeout, err)
		}
		log.Warn("classification failed, using fail-safe default", "mode", mode, "err", err)
		return Verdict{}, err
	}
	return v, nil
}

func inbox(t TrustTier, prob int, p Priority, reason string, calls int) Result {
	return Result{Category: CategoryInbox, Trust: t, SpamProbability: prob, ShouldNotify: true, Priority: p, Reason: reason, OracleCalls: calls}
}

func held(prob int, p Priority, reason string, calls int) Result {
	return Result{Category: CategoryHeld, Trust: TrustLow, SpamProbability: prob, IsHeld: true, Priority: p, Reason: reason, OracleCalls: calls}
}

func spam(t TrustTier, prob int, p Priority, reason string) Result {
	return Result{Category: CategorySpam, Trust: t, SpamProbability: prob, IsHeld: true, ShouldNotify: false, Priority: p, Reason: reason, OracleCalls: 1}
}
