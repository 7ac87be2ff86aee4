package telephony

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"telecom-inbound/internal/calls"
	"telecom-inbound/internal/inbound"
)

// Twilio posts application/x-www-form-urlencoded bodies.
// Ref: https://www.twilio.com/docs/messaging/guides/webhook-request
//
// Forms carry only what routing needs. No decisions are made here.

// maxMedia caps MediaUrlN parsing; Twilio allows up to 10 per MMS.
const maxMedia = 10

type SMSForm struct {
	MessageSid string
	AccountSid string
	From       string
	To         string
	Body       string
	NumMedia   int
	Media      []inbound.Attachment
}

func ParseSMS(r *http.Request) (SMSForm, error) {
	if err := r.ParseForm(); err != nil {
		return SMSForm{}, err
	}
	f := SMSForm{
		MessageSid: strings.TrimSpace(r.PostFormValue("MessageSid")),
		AccountSid: r.PostFormValue("AccountSid"),
		From:       strings.TrimSpace(r.PostFormValue("From")),
		To:         strings.TrimSpace(r.PostFormValue("To")),
		Body:       r.PostFormValue("Body"),
	}
	if f.MessageSid == "" {
		// Older callbacks only send SmsSid.
		f.MessageSid = strings.TrimSpace(r.PostFormValue("SmsSid"))
	}
	if n := r.PostFormValue("NumMedia"); n != "" {
		v, err := strconv.Atoi(n)
		if err != nil || v < 0 {
			return SMSForm{}, fmt.Errorf("telephony: invalid NumMedia %q", n)
		}
		f.NumMedia = v
	}
	for i := 0; i < f.NumMedia && i < maxMedia; i++ {
		u := r.PostFormValue("MediaUrl" + strconv.Itoa(i))
		if u == "" {
			continue
		}
		f.Media = append(f.Media, inbound.Attachment{
			URL:         u,
			ContentType: r.PostFormValue("MediaContentType" + strconv.Itoa(i)),
		})
	}
	return f, nil
}

func (f SMSForm) ToMessageEvent(receivedAt time.Time) inbound.MessageEvent {
	return inbound.MessageEvent{
		From:        f.From,
		To:          f.To,
		ExternalID:  f.MessageSid,
		Body:        f.Body,
		Attachments: f.Media,
		ReceivedAt:  receivedAt,
	}
}

type VoiceForm struct {
	CallSid       string
	AccountSid    string
	From          string
	To            string
	Direction     string
	CallStatus    string
	CallerName    string
	ForwardedFrom string
}

func ParseVoice(r *http.Request) (VoiceForm, error) {
	if err := r.ParseForm(); err != nil {
		return VoiceForm{}, err
	}
	return VoiceForm{
		CallSid:       strings.TrimSpace(r.PostFormValue("CallSid")),
		AccountSid:    r.PostFormValue("AccountSid"),
		From:          strings.TrimSpace(r.PostFormValue("From")),
		To:            strings.TrimSpace(r.PostFormValue("To")),
		Direction:     r.PostFormValue("Direction"),
		CallStatus:    r.PostFormValue("CallStatus"),
		CallerName:    r.PostFormValue("CallerName"),
		ForwardedFrom: strings.TrimSpace(r.PostFormValue("ForwardedFrom")),
	}, nil
}

func (f VoiceForm) ToCallEvent(receivedAt time.Time) inbound.CallEvent {
	return inbound.CallEvent{
		From:           f.From,
		To:             f.To,
		ExternalCallID: f.CallSid,
		ReceivedAt:     receivedAt,
	}
}

// StatusForm is a call status callback. Dialed legs report with their own
// CallSid and the caller's leg as ParentCallSid.
type StatusForm struct {
	CallSid         string
	ParentCallSid   string
	CallStatus      calls.Status
	DurationSeconds int
}

func ParseStatusCallback(r *http.Request) (StatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return StatusForm{}, err
	}
	f := StatusForm{
		CallSid:       strings.TrimSpace(r.PostFormValue("CallSid")),
		ParentCallSid: strings.TrimSpace(r.PostFormValue("ParentCallSid")),
		CallStatus:    calls.ParseStatus(r.PostFormValue("CallStatus")),
	}
	if d := r.PostFormValue("CallDuration"); d != "" {
		v, err := strconv.Atoi(d)
		if err != nil {
			return StatusForm{}, fmt.Errorf("telephony: invalid CallDuration %q", d)
		}
		f.DurationSeconds = v
	}
	return f, nil
}

// GatherForm is the screening prompt result on the dialed leg. The caller's
// leg travels in the "parent" query parameter of the action URL.
type GatherForm struct {
	CallSid   string
	ParentSid string
	Digits    string
}

func ParseGather(r *http.Request) (GatherForm, error) {
	if err := r.ParseForm(); err != nil {
		return GatherForm{}, err
	}
	parent := strings.TrimSpace(r.URL.Query().Get("parent"))
	if parent == "" {
		parent = strings.TrimSpace(r.PostFormValue("ParentCallSid"))
	}
	return GatherForm{
		CallSid:   strings.TrimSpace(r.PostFormValue("CallSid")),
		ParentSid: parent,
		Digits:    strings.TrimSpace(r.PostFormValue("Digits")),
	}, nil
}

// Outcome treats an empty gather as a timeout, which is what Twilio posts
// with actionOnEmptyResult when nobody presses a key.
func (f GatherForm) Outcome() calls.ScreeningOutcome {
	return calls.ScreenDigit(f.Digits, f.Digits == "")
}
