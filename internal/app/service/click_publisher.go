package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mileusna/useragent"
	"github.com/nats-io/nats.go"
	"github.com/pulseurl/pulseurl/internal/app/model"
)

// jetStream is the slice of nats.JetStreamContext the publisher needs.
type jetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// ClickPublisher serializes click events onto JetStream. Events for the
// same link share a subject, preserving their relative order; delivery
// is at-least-once.
type ClickPublisher struct {
	js jetStream
}

// NewClickPublisher creates a click event publisher.
func NewClickPublisher(js nats.JetStreamContext) *ClickPublisher {
	return &ClickPublisher{js: js}
}

// Publish derives the analytics dimensions from the raw request metadata
// and appends the event to the per-link subject.
func (p *ClickPublisher) Publish(code, ip, userAgent, referrer string) error {
	event := BuildClickEvent(code, ip, userAgent, referrer, time.Now().UTC())

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal click event: %w", err)
	}

	if _, err := p.js.Publish(model.ClickSubject(code), data); err != nil {
		return fmt.Errorf("publish click event: %w", err)
	}
	return nil
}

// BuildClickEvent assembles a ClickEvent, deriving browser, OS and
// device type from the User-Agent string.
func BuildClickEvent(code, ip, rawUA, referrer string, at time.Time) model.ClickEvent {
	ua := useragent.Parse(rawUA)

	browser := ua.Name
	if browser == "" {
		browser = "Unknown"
	}
	os := ua.OS
	if os == "" {
		os = "Unknown"
	}

	device := "desktop"
	switch {
	case ua.Mobile:
		device = "mobile"
	case ua.Tablet:
		device = "tablet"
	case ua.Bot:
		device = "bot"
	}

	if referrer == "" {
		referrer = "direct"
	}

	return model.ClickEvent{
		ID:         uuid.New().String(),
		LinkCode:   code,
		OccurredAt: at,
		IP:         ip,
		UserAgent:  rawUA,
		Browser:    browser,
		OS:         os,
		DeviceType: device,
		Referrer:   referrer,
	}
}
