// Package decoder turns the encoded payloads delivered by the IoT cloud into
// model.Event values.
//
// The webhook transport ships the event JSON as a string of space separated
// hexadecimal byte values, padded with control bytes. DecodeHex recovers the
// text and ParseEvent reads the JSON document.
package decoder

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kilianp07/lowbac/core/model"
)

// DecodeHex maps every hexadecimal token of raw to the character with that
// code point and drops characters below the space character.
func DecodeHex(raw string) (string, error) {
	var b strings.Builder
	for i, tok := range strings.Fields(raw) {
		v, err := strconv.ParseUint(tok, 16, 32)
		if err != nil {
			return "", &DecodeError{Index: i, Token: tok, Err: err}
		}
		r := rune(v)
		if !utf8.ValidRune(r) {
			return "", &DecodeError{Index: i, Token: tok, Err: fmt.Errorf("invalid code point %#x", v)}
		}
		if r < ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

// EncodeHex renders s the way the IoT cloud transports it: one lowercase
// hexadecimal token per byte, separated by spaces. Non-ASCII text does not
// round-trip through DecodeHex.
func EncodeHex(s string) string {
	toks := make([]string, len(s))
	for i := 0; i < len(s); i++ {
		toks[i] = strconv.FormatUint(uint64(s[i]), 16)
	}
	return strings.Join(toks, " ")
}

type wireSignal struct {
	Name      string `json:"name"`
	Value     any    `json:"value"`
	UpdatedAt string `json:"updated_at"`
}

type wireEvent struct {
	WebhookID string        `json:"webhook_id"`
	ThingID   string        `json:"thing_id"`
	Values    *[]wireSignal `json:"values"`
}

// ParseEvent parses the decoded JSON document into an Event. Signal order is
// preserved.
func ParseEvent(data []byte) (model.Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return model.Event{}, &MalformedEventError{Reason: "invalid json", Err: err}
	}
	if w.Values == nil {
		return model.Event{}, &MalformedEventError{Reason: "missing values"}
	}
	ev := model.Event{
		WebhookID:     w.WebhookID,
		SourceThingID: w.ThingID,
		Signals:       make([]model.Signal, 0, len(*w.Values)),
	}
	for i, v := range *w.Values {
		if v.Name == "" {
			return model.Event{}, &MalformedEventError{Reason: fmt.Sprintf("value %d has no name", i)}
		}
		var ts time.Time
		if v.UpdatedAt != "" {
			parsed, err := time.Parse(time.RFC3339Nano, v.UpdatedAt)
			if err != nil {
				return model.Event{}, &MalformedEventError{Reason: fmt.Sprintf("value %q updated_at", v.Name), Err: err}
			}
			ts = parsed
		}
		ev.Signals = append(ev.Signals, model.Signal{Name: v.Name, Value: v.Value, UpdatedAt: ts})
	}
	return ev, nil
}

// Decode runs DecodeHex followed by ParseEvent.
func Decode(raw string) (model.Event, error) {
	text, err := DecodeHex(raw)
	if err != nil {
		return model.Event{}, err
	}
	return ParseEvent([]byte(text))
}

// IsBadPayload reports whether err was caused by the inbound payload rather
// than by the service.
func IsBadPayload(err error) bool {
	var de *DecodeError
	var me *MalformedEventError
	return errors.As(err, &de) || errors.As(err, &me)
}
