package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeError reports verified bytes that failed to decode as an envelope.
// It is distinct from verification errors: the delivery was authentic but
// not parseable.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("webhook: decoding envelope: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ValidationError reports an envelope missing mandatory fields.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("webhook: envelope missing required fields: %s", strings.Join(e.Missing, ", "))
}

// envelopeFields is the set of top-level keys that belong to the envelope
// schema. Anything else lands in Envelope.Extra.
var envelopeFields = map[string]bool{
	"event_type":     true,
	"event_id":       true,
	"timestamp":      true,
	"partner_app_id": true,
	"for_user":       true,
	"data":           true,
}

// Parse verifies payload against signature and decodes it into an Envelope.
//
// Verification always runs first; a partially trusted envelope is never
// returned. Decode failures and missing mandatory fields surface as
// *DecodeError and *ValidationError respectively.
func Parse(payload []byte, signature, secret string) (*Envelope, error) {
	if res := Verify(secret, payload, signature); !res.Valid {
		return nil, res.Err
	}

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, &DecodeError{Err: err}
	}

	var missing []string
	if env.EventType == "" {
		missing = append(missing, "event_type")
	}
	if env.EventID == "" {
		missing = append(missing, "event_id")
	}
	if env.Timestamp == "" {
		missing = append(missing, "timestamp")
	}
	if env.PartnerAppID == "" {
		missing = append(missing, "partner_app_id")
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}

	data, err := decodeEventData(env.EventType, env.RawData)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	env.Data = data

	// Collect unrecognized top-level fields. Decode failure here cannot
	// happen: payload already unmarshalled above.
	var all map[string]json.RawMessage
	_ = json.Unmarshal(payload, &all)
	for k, v := range all {
		if !envelopeFields[k] {
			if env.Extra == nil {
				env.Extra = make(map[string]json.RawMessage)
			}
			env.Extra[k] = v
		}
	}

	return &env, nil
}
