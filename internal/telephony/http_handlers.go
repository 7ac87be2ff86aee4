package telephony

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"telecom-inbound/internal/calls"
	"telecom-inbound/internal/inbound"
	"telecom-inbound/internal/routing"
	"telecom-inbound/pkg/logger"
)

const (
	dialTimeoutSeconds   = 20
	screenTimeoutSeconds = 8
	voicemailMaxSeconds  = 120
)

// Prompts are the caller-facing texts.
type Prompts struct {
	Screen    string
	Voicemail string
	Rejected  string
}

func DefaultPrompts() Prompts {
	return Prompts{
		Screen:    "You have an incoming call. Press 1 to accept, any other key to decline.",
		Voicemail: "The person you are calling is unavailable. Please leave a message after the tone.",
		Rejected:  "rejected",
	}
}

// WebhookHandler converts Twilio webhooks into routing calls and answers
// in TwiML. Decisions belong to inbound.Router and calls.Service.
type WebhookHandler struct {
	Router *inbound.Router
	Calls  *calls.Service

	// BaseURL is the public origin used to build callback URLs.
	BaseURL string
	Prompts Prompts

	Now func() time.Time
}

func NewWebhookHandler(router *inbound.Router, callSvc *calls.Service, baseURL string, p Prompts) *WebhookHandler {
	d := DefaultPrompts()
	if p.Screen == "" {
		p.Screen = d.Screen
	}
	if p.Voicemail == "" {
		p.Voicemail = d.Voicemail
	}
	if p.Rejected == "" {
		p.Rejected = d.Rejected
	}
	return &WebhookHandler{Router: router, Calls: callSvc, BaseURL: baseURL, Prompts: p, Now: time.Now}
}

// Register mounts the webhook routes on g, which is expected at /webhooks/twilio.
func (h *WebhookHandler) Register(g *gin.RouterGroup) {
	g.POST("/sms", h.HandleSMS)
	g.POST("/voice", h.HandleVoice)
	g.POST("/voice/status", h.HandleStatus)
	g.POST("/voice/screen", h.HandleScreen)
	g.POST("/voice/screen/result", h.HandleScreenResult)
	g.POST("/voice/dial-result", h.HandleDialResult)
	g.POST("/voice/voicemail", h.HandleVoicemail)
}

func (h *WebhookHandler) callbackURL(path string, q url.Values) string {
	u := h.BaseURL + "/webhooks/twilio" + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (h *WebhookHandler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

func (h *WebhookHandler) HandleSMS(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseSMS(c.Request)
	if err != nil || form.MessageSid == "" {
		log.Warn("twilio sms parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	dec, err := h.Router.RouteMessage(c.Request.Context(), form.ToMessageEvent(h.now()))
	if err != nil {
		h.routingFailed(c, "message", err)
		return
	}

	r := NewResponse()
	if !dec.Duplicate {
		if dec.ForwardTo != "" {
			r.Message(dec.ForwardTo, forwardBody(form))
		}
		if dec.AutoReply != "" {
			r.Message("", dec.AutoReply)
		}
	}
	h.writeTwiML(c, r)
}

func forwardBody(f SMSForm) string {
	body := "From " + f.From + ": " + f.Body
	for _, m := range f.Media {
		body += "\n" + m.URL
	}
	return body
}

func (h *WebhookHandler) HandleVoice(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseVoice(c.Request)
	if err != nil || form.CallSid == "" {
		log.Warn("twilio voice parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	dec, err := h.Router.RouteCall(c.Request.Context(), form.ToCallEvent(h.now()))
	if err != nil {
		h.routingFailed(c, "call", err)
		return
	}

	r := NewResponse()
	switch dec.Action {
	case routing.CallReject:
		r.Reject(h.Prompts.Rejected)
	case routing.CallDial:
		parent := url.Values{"parent": {form.CallSid}}
		r.Dial(DialOptions{
			Number:    dec.Target,
			Action:    h.callbackURL("/voice/dial-result", nil),
			ScreenURL: h.callbackURL("/voice/screen", parent),
			Timeout:   dialTimeoutSeconds,
			CallerID:  form.To,
		})
	default:
		h.voicemail(r)
	}
	h.writeTwiML(c, r)
}

func (h *WebhookHandler) voicemail(r *Response) {
	r.Say(h.Prompts.Voicemail).Record(h.callbackURL("/voice/voicemail", nil), voicemailMaxSeconds)
}

// HandleScreen runs on the dialed leg once it answers.
func (h *WebhookHandler) HandleScreen(c *gin.Context) {
	form, err := ParseGather(c.Request)
	if err != nil || form.ParentSid == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing parent call"})
		return
	}
	r := NewResponse().Gather(
		h.callbackURL("/voice/screen/result", url.Values{"parent": {form.ParentSid}}),
		h.Prompts.Screen, screenTimeoutSeconds, true,
	)
	h.writeTwiML(c, r)
}

// HandleScreenResult bridges on the accept digit and drops the dialed leg
// otherwise, which sends the caller on to the dial-result callback.
func (h *WebhookHandler) HandleScreenResult(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseGather(c.Request)
	if err != nil || form.ParentSid == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing parent call"})
		return
	}

	outcome := form.Outcome()
	_, err = h.Calls.ResolveScreening(c.Request.Context(), form.ParentSid, outcome)
	switch {
	case err == nil:
		h.writeTwiML(c, NewResponse())
		return
	case errors.Is(err, calls.ErrScreeningDeclined), errors.Is(err, calls.ErrScreeningTimeout):
		log.Info("screening not accepted", "external_call_id", form.ParentSid, "outcome", outcome)
	default:
		log.Error("screening resolve failed", "external_call_id", form.ParentSid, "err", err)
	}
	h.writeTwiML(c, NewResponse().Hangup())
}

// HandleDialResult runs on the caller's leg after the Dial verb ends.
func (h *WebhookHandler) HandleDialResult(c *gin.Context) {
	log := logger.FromGin(c)
	if err := c.Request.ParseForm(); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	callSid := c.Request.PostFormValue("CallSid")
	ctx := c.Request.Context()

	rec, err := h.Calls.Get(ctx, callSid)
	if err != nil {
		log.Warn("dial result for unknown call", "external_call_id", callSid, "err", err)
		h.writeTwiML(c, NewResponse().Hangup())
		return
	}
	if rec.ScreeningOutcome == calls.ScreeningAccepted {
		h.writeTwiML(c, NewResponse().Hangup())
		return
	}
	if rec.ScreeningOutcome == "" || rec.ScreeningOutcome == calls.ScreeningDialing {
		// Nobody answered the dialed leg.
		_, _ = h.Calls.ResolveScreening(ctx, callSid, calls.ScreeningTimeout)
	}
	r := NewResponse()
	h.voicemail(r)
	h.writeTwiML(c, r)
}

func (h *WebhookHandler) HandleStatus(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseStatusCallback(c.Request)
	if err != nil || form.CallSid == "" {
		log.Warn("twilio status parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	if form.CallStatus == "" {
		c.Status(http.StatusNoContent)
		return
	}

	ctx := c.Request.Context()
	id := form.CallSid
	_, changed, err := h.Calls.ApplyStatus(ctx, id, form.CallStatus, form.DurationSeconds)
	if errors.Is(err, calls.ErrNotFound) && form.ParentCallSid != "" {
		// A dialed leg only settles a still-ringing parent; locked parents
		// ignore it.
		id = form.ParentCallSid
		_, changed, err = h.Calls.ApplyStatus(ctx, id, form.CallStatus, form.DurationSeconds)
	}
	if err != nil {
		if errors.Is(err, calls.ErrNotFound) {
			log.Warn("status for unknown call", "external_call_id", id)
			c.Status(http.StatusNoContent)
			return
		}
		log.Error("status apply failed", "external_call_id", id, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "status failed"})
		return
	}
	log.Debug("call status", "external_call_id", id, "status", form.CallStatus, "changed", changed)
	c.Status(http.StatusNoContent)
}

func (h *WebhookHandler) HandleVoicemail(c *gin.Context) {
	log := logger.FromGin(c)
	if err := c.Request.ParseForm(); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	callSid := c.Request.PostFormValue("CallSid")
	if u := c.Request.PostFormValue("RecordingUrl"); u != "" {
		if err := h.Calls.AttachVoicemail(c.Request.Context(), callSid, u); err != nil {
			log.Warn("voicemail attach failed", "external_call_id", callSid, "err", err)
		}
	}
	h.writeTwiML(c, NewResponse().Hangup())
}

func (h *WebhookHandler) routingFailed(c *gin.Context, kind string, err error) {
	log := logger.FromGin(c)
	switch {
	case errors.Is(err, inbound.ErrUnresolvedAccount):
		log.Warn("unresolved account", "kind", kind, "err", err)
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown destination"})
	case errors.Is(err, inbound.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + kind})
	default:
		log.Error("inbound routing failed", "kind", kind, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "routing failed"})
	}
}

func (h *WebhookHandler) writeTwiML(c *gin.Context, r *Response) {
	twiml, err := r.Render()
	if err != nil {
		logger.FromGin(c).Error("twiml render failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, twiml)
}
