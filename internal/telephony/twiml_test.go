package telephony

import (
	"strings"
	"testing"
)

func TestResponse_RejectAndHangup(t *testing.T) {
	xml, err := NewResponse().Reject("rejected").Render()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(xml, `<Reject reason="rejected"></Reject>`) {
		t.Fatalf("unexpected xml: %s", xml)
	}

	xml, _ = NewResponse().Hangup().Render()
	if !strings.Contains(xml, "<Hangup></Hangup>") {
		t.Fatalf("unexpected xml: %s", xml)
	}
}

func TestResponse_DialWithScreening(t *testing.T) {
	xml, err := NewResponse().Dial(DialOptions{
		Number:    "+15552223333",
		Action:    "https://x.example/webhooks/twilio/voice/dial-result",
		ScreenURL: "https://x.example/webhooks/twilio/voice/screen?parent=CA1",
		Timeout:   20,
	}).Render()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, want := range []string{
		`<Dial action="https://x.example/webhooks/twilio/voice/dial-result" timeout="20">`,
		`<Number url="https://x.example/webhooks/twilio/voice/screen?parent=CA1">+15552223333</Number>`,
	} {
		if !strings.Contains(xml, want) {
			t.Fatalf("expected %q in xml: %s", want, xml)
		}
	}
}

func TestResponse_DialRequiresNumber(t *testing.T) {
	if _, err := NewResponse().Dial(DialOptions{}).Render(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestResponse_GatherRecordMessage(t *testing.T) {
	xml, err := NewResponse().
		Gather("/r", "Press 1", 8, true).
		Say("Leave a message").
		Record("/vm", 120).
		Message("+15554445555", "From +1555: hi & bye").
		Render()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, want := range []string{
		`<Gather action="/r" numDigits="1" timeout="8" actionOnEmptyResult="true">`,
		`<Say>Press 1</Say>`,
		`<Record action="/vm" maxLength="120" playBeep="true"></Record>`,
		`<Message to="+15554445555">From +1555: hi &amp; bye</Message>`,
	} {
		if !strings.Contains(xml, want) {
			t.Fatalf("expected %q in xml: %s", want, xml)
		}
	}
}

func TestResponse_Empty(t *testing.T) {
	xml, err := NewResponse().Render()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(xml, "<Response></Response>") {
		t.Fatalf("unexpected xml: %s", xml)
	}
}
