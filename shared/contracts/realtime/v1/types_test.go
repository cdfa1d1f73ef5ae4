package v1

import (
	"encoding/json"
	"testing"
)

func TestEnvelopeValidate(t *testing.T) {
	cases := []struct {
		name    string
		env     Envelope
		wantErr bool
	}{
		{"valid message:new", Envelope{V: Version, Type: TypeMessageNew}, false},
		{"valid presence:update", Envelope{V: Version, Type: TypePresenceUpdate}, false},
		{"valid error", Envelope{V: Version, Type: TypeError}, false},
		{"missing version", Envelope{Type: TypeMessageNew}, true},
		{"wrong version", Envelope{V: "v2", Type: TypeMessageNew}, true},
		{"missing type", Envelope{V: Version}, true},
		{"unknown type", Envelope{V: Version, Type: "message:delete"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.env.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestEnvelopeRoundtripKeepsPayload(t *testing.T) {
	in := Envelope{
		V:       Version,
		Type:    TypeMessageSend,
		Payload: json.RawMessage(`{"conversationId":"c1","text":"hi"}`),
	}

	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out Envelope
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Type != TypeMessageSend {
		t.Fatalf("type = %q", out.Type)
	}

	var p MessageSendPayload
	if err := json.Unmarshal(out.Payload, &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.ConversationID != "c1" || p.Text != "hi" {
		t.Fatalf("payload roundtrip: %+v", p)
	}
}
