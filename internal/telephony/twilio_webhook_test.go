package telephony

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"telecom-inbound/internal/calls"
)

func formRequest(target, body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestParseSMS_WithMedia(t *testing.T) {
	r := formRequest("/webhooks/twilio/sms",
		"MessageSid=SM1&From=%2B15551234567&To=%2B15557654321&Body=look&NumMedia=2"+
			"&MediaUrl0=https%3A%2F%2Fm%2F0&MediaContentType0=image%2Fjpeg&MediaUrl1=https%3A%2F%2Fm%2F1")

	f, err := ParseSMS(r)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if f.MessageSid != "SM1" || f.Body != "look" || f.NumMedia != 2 || len(f.Media) != 2 {
		t.Fatalf("unexpected form: %+v", f)
	}
	if f.Media[0].ContentType != "image/jpeg" || f.Media[1].URL != "https://m/1" {
		t.Fatalf("unexpected media: %+v", f.Media)
	}

	ev := f.ToMessageEvent(time.Unix(1700000000, 0).UTC())
	if ev.ExternalID != "SM1" || ev.From != "+15551234567" || len(ev.Attachments) != 2 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestParseSMS_RejectsBadMediaCount(t *testing.T) {
	if _, err := ParseSMS(formRequest("/sms", "MessageSid=SM1&NumMedia=x")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseVoice(t *testing.T) {
	f, err := ParseVoice(formRequest("/voice", "CallSid=CA123&From=%2B15551234567&To=%2B15557654321"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	ev := f.ToCallEvent(time.Now())
	if ev.ExternalCallID != "CA123" || ev.From != "+15551234567" || ev.To != "+15557654321" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestParseStatusCallback(t *testing.T) {
	f, err := ParseStatusCallback(formRequest("/status", "CallSid=CA2&ParentCallSid=CA1&CallStatus=no_answer&CallDuration=0"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if f.CallStatus != calls.StatusNoAnswer || f.ParentCallSid != "CA1" {
		t.Fatalf("unexpected form: %+v", f)
	}
	if _, err := ParseStatusCallback(formRequest("/status", "CallSid=CA2&CallDuration=abc")); err == nil {
		t.Fatalf("expected duration error")
	}
}

func TestParseGather_Outcome(t *testing.T) {
	cases := map[string]calls.ScreeningOutcome{
		"CallSid=CA2&Digits=1": calls.ScreeningAccepted,
		"CallSid=CA2&Digits=2": calls.ScreeningDeclined,
		"CallSid=CA2":          calls.ScreeningTimeout,
	}
	for body, want := range cases {
		f, err := ParseGather(formRequest("/voice/screen/result?parent=CA1", body))
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if f.ParentSid != "CA1" || f.Outcome() != want {
			t.Fatalf("%s: got parent=%s outcome=%s", body, f.ParentSid, f.Outcome())
		}
	}
}
