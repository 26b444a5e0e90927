package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
)

// Minimal TwiML response builder. It intentionally avoids any provider SDK
// dependency; only the verbs used at the adapter boundary are modeled.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type twimlRedirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

// RenderSay renders a spoken-prompt TwiML document. An empty text renders an
// empty <Response/>, which Twilio treats as an acknowledgement.
func RenderSay(text string) (string, error) {
	var r twimlResponse
	if strings.TrimSpace(text) != "" {
		r.Verbs = append(r.Verbs, twimlSay{Text: text})
	}
	return encodeTwiML(r)
}

// RenderSayRedirect renders the outbound-dial TwiML: speak the opening
// message, then hand control back to the webhook for the rest of the call.
func RenderSayRedirect(text, redirectURL string) (string, error) {
	if strings.TrimSpace(redirectURL) == "" {
		return "", errors.New("telephony: redirect url required")
	}
	var r twimlResponse
	if strings.TrimSpace(text) != "" {
		r.Verbs = append(r.Verbs, twimlSay{Text: text})
	}
	r.Verbs = append(r.Verbs, twimlRedirect{Method: "POST", URL: redirectURL})
	return encodeTwiML(r)
}

func encodeTwiML(r twimlResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
