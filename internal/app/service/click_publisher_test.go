package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pulseurl/pulseurl/internal/app/model"
)

const (
	chromeMacUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	iphoneUA    = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
)

type fakeJetStream struct {
	subject string
	data    []byte
	err     error
}

func (f *fakeJetStream) Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error) {
	f.subject = subj
	f.data = data
	if f.err != nil {
		return nil, f.err
	}
	return &nats.PubAck{Stream: model.ClickStreamName}, nil
}

func TestClickPublisher_PerLinkSubject(t *testing.T) {
	js := &fakeJetStream{}
	p := &ClickPublisher{js: js}

	if err := p.Publish("abc123", "203.0.113.9", chromeMacUA, "https://ref.example.com"); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	if js.subject != "clicks.events.abc123" {
		t.Fatalf("expected per-link subject, got %q", js.subject)
	}

	var event model.ClickEvent
	if err := json.Unmarshal(js.data, &event); err != nil {
		t.Fatalf("payload does not unmarshal: %v", err)
	}
	if event.LinkCode != "abc123" || event.IP != "203.0.113.9" {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.ID == "" {
		t.Fatal("expected a generated event id")
	}
}

func TestBuildClickEvent_DerivesDimensions(t *testing.T) {
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	event := BuildClickEvent("abc123", "203.0.113.9", chromeMacUA, "", at)
	if event.Browser != "Chrome" {
		t.Fatalf("expected Chrome, got %q", event.Browser)
	}
	if event.DeviceType != "desktop" {
		t.Fatalf("expected desktop, got %q", event.DeviceType)
	}
	if event.Referrer != "direct" {
		t.Fatalf("expected empty referrer to become direct, got %q", event.Referrer)
	}
	if !event.OccurredAt.Equal(at) {
		t.Fatalf("unexpected timestamp %v", event.OccurredAt)
	}

	mobile := BuildClickEvent("abc123", "203.0.113.9", iphoneUA, "https://ref.example.com", at)
	if mobile.DeviceType != "mobile" {
		t.Fatalf("expected mobile, got %q", mobile.DeviceType)
	}
	if mobile.Referrer != "https://ref.example.com" {
		t.Fatalf("unexpected referrer %q", mobile.Referrer)
	}

	unknown := BuildClickEvent("abc123", "203.0.113.9", "", "", at)
	if unknown.Browser != "Unknown" || unknown.OS != "Unknown" {
		t.Fatalf("expected unknown dimensions, got %q/%q", unknown.Browser, unknown.OS)
	}
}
