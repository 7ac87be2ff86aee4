package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
)

// Response is a minimal TwiML builder. Only the verbs the routing
// adapter emits are modelled.
type Response struct {
	verbs []any
	err   error
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlReject struct {
	XMLName xml.Name `xml:"Reject"`
	Reason  string   `xml:"reason,attr,omitempty"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type twimlDial struct {
	XMLName  xml.Name    `xml:"Dial"`
	Action   string      `xml:"action,attr,omitempty"`
	Timeout  int         `xml:"timeout,attr,omitempty"`
	CallerID string      `xml:"callerId,attr,omitempty"`
	Number   twimlNumber `xml:"Number"`
}

type twimlNumber struct {
	URL    string `xml:"url,attr,omitempty"`
	Number string `xml:",chardata"`
}

type twimlGather struct {
	XMLName             xml.Name `xml:"Gather"`
	Action              string   `xml:"action,attr,omitempty"`
	NumDigits           int      `xml:"numDigits,attr"`
	Timeout             int      `xml:"timeout,attr,omitempty"`
	ActionOnEmptyResult bool     `xml:"actionOnEmptyResult,attr,omitempty"`
	Say                 *twimlSay
}

type twimlRecord struct {
	XMLName   xml.Name `xml:"Record"`
	Action    string   `xml:"action,attr,omitempty"`
	MaxLength int      `xml:"maxLength,attr,omitempty"`
	PlayBeep  bool     `xml:"playBeep,attr"`
}

type twimlMessage struct {
	XMLName xml.Name `xml:"Message"`
	To      string   `xml:"to,attr,omitempty"`
	Body    string   `xml:",chardata"`
}

func NewResponse() *Response { return &Response{} }

func (r *Response) Reject(reason string) *Response {
	r.verbs = append(r.verbs, twimlReject{Reason: reason})
	return r
}

func (r *Response) Hangup() *Response {
	r.verbs = append(r.verbs, twimlHangup{})
	return r
}

func (r *Response) Say(text string) *Response {
	if strings.TrimSpace(text) != "" {
		r.verbs = append(r.verbs, twimlSay{Text: text})
	}
	return r
}

// DialOptions describes a bridged leg. ScreenURL is fetched by Twilio when
// the callee answers and must return the screening prompt.
type DialOptions struct {
	Number    string
	Action    string
	ScreenURL string
	Timeout   int
	CallerID  string
}

func (r *Response) Dial(o DialOptions) *Response {
	if strings.TrimSpace(o.Number) == "" {
		r.err = errors.New("telephony: dial number required")
		return r
	}
	r.verbs = append(r.verbs, twimlDial{
		Action:   o.Action,
		Timeout:  o.Timeout,
		CallerID: o.CallerID,
		Number:   twimlNumber{URL: o.ScreenURL, Number: o.Number},
	})
	return r
}

// Gather collects a single digit. With emptyAction set the action URL is
// also requested when nothing is pressed.
func (r *Response) Gather(action, prompt string, timeout int, emptyAction bool) *Response {
	g := twimlGather{Action: action, NumDigits: 1, Timeout: timeout, ActionOnEmptyResult: emptyAction}
	if prompt != "" {
		g.Say = &twimlSay{Text: prompt}
	}
	r.verbs = append(r.verbs, g)
	return r
}

func (r *Response) Record(action string, maxLength int) *Response {
	r.verbs = append(r.verbs, twimlRecord{Action: action, MaxLength: maxLength, PlayBeep: true})
	return r
}

// Message sends an SMS. An empty to replies to the sender.
func (r *Response) Message(to, body string) *Response {
	r.verbs = append(r.verbs, twimlMessage{To: to, Body: body})
	return r
}

// Render returns the document. An empty builder renders <Response></Response>,
// which Twilio treats as a no-op.
func (r *Response) Render() (string, error) {
	if r.err != nil {
		return "", r.err
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(twimlResponse{Verbs: r.verbs}); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
