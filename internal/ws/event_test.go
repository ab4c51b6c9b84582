package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/omarmohammed271/nutricare-chat/internal/store"
)

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"message", `{"type":"message","sender_id":1,"content":"hi"}`, false},
		{"message media only", `{"type":"message","sender_id":1,"media":"/m/1.png"}`, false},
		{"message missing sender", `{"type":"message","content":"hi"}`, true},
		{"message empty body", `{"type":"message","sender_id":1}`, true},
		{"typing", `{"type":"typing","username":"amr"}`, false},
		{"typing missing username", `{"type":"typing"}`, true},
		{"seen", `{"type":"seen","message_ids":[1,2]}`, false},
		{"seen empty ids", `{"type":"seen","message_ids":[]}`, true},
		{"media", `{"type":"media","message_id":7}`, false},
		{"media missing id", `{"type":"media"}`, true},
		{"ping", `{"type":"ping"}`, false},
		{"entered", `{"type":"entered"}`, false},
		{"exit", `{"type":"exit"}`, false},
		{"unknown type", `{"type":"bogus"}`, true},
		{"missing type", `{"content":"hi"}`, true},
		{"not json", `not-json`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseInbound([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Errorf("parseInbound(%s) error = %v, wantErr %v", tt.data, err, tt.wantErr)
			}
		})
	}
}

func TestMessageEvent(t *testing.T) {
	rec := &store.MessageRecord{
		ID:        12,
		Sender:    "amr",
		Content:   "hello",
		Timestamp: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		SeenBy:    []uint{},
	}
	b, err := messageEvent(rec)
	if err != nil {
		t.Fatalf("messageEvent() error = %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["type"] != "message" {
		t.Errorf("type = %v, want message", got["type"])
	}
	if got["sender"] != "amr" || got["content"] != "hello" {
		t.Errorf("unexpected payload: %s", b)
	}
	if _, ok := got["media"]; ok {
		t.Error("empty media should be omitted")
	}
	if seen, ok := got["seen_by"].([]any); !ok || len(seen) != 0 {
		t.Errorf("seen_by = %v, want empty list", got["seen_by"])
	}
}

func TestUserStatusEvent(t *testing.T) {
	b, err := userStatusEvent([]string{"amr"}, []string{"sara"})
	if err != nil {
		t.Fatalf("userStatusEvent() error = %v", err)
	}
	var got struct {
		Type        string   `json:"type"`
		ActiveUsers []string `json:"active_users"`
		ExitedUsers []string `json:"exited_users"`
	}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != "user_status" {
		t.Errorf("type = %q, want user_status", got.Type)
	}
	if len(got.ActiveUsers) != 1 || got.ActiveUsers[0] != "amr" {
		t.Errorf("active_users = %v", got.ActiveUsers)
	}
	if len(got.ExitedUsers) != 1 || got.ExitedUsers[0] != "sara" {
		t.Errorf("exited_users = %v", got.ExitedUsers)
	}
}

func TestSeenEvent(t *testing.T) {
	b, err := seenEvent(3, []uint{10, 11})
	if err != nil {
		t.Fatalf("seenEvent() error = %v", err)
	}
	var got struct {
		Type       string `json:"type"`
		UserID     uint   `json:"user_id"`
		MessageIDs []uint `json:"message_ids"`
	}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != "seen" || got.UserID != 3 || len(got.MessageIDs) != 2 {
		t.Errorf("unexpected payload: %s", b)
	}
}
