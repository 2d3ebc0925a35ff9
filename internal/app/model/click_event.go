package model

import "time"

// ClickEvent is one redirect recorded for analytics. Events are
// append-only and delivered at least once, so duplicates are possible.
type ClickEvent struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	LinkCode   string    `json:"link_code" gorm:"size:32;index:idx_click_events_link_time,priority:1"`
	OccurredAt time.Time `json:"occurred_at" gorm:"index:idx_click_events_link_time,priority:2"`
	IP         string    `json:"ip" gorm:"size:45"`
	UserAgent  string    `json:"user_agent" gorm:"type:text"`
	Browser    string    `json:"browser" gorm:"size:64"`
	OS         string    `json:"os" gorm:"size:64"`
	DeviceType string    `json:"device_type" gorm:"size:16"`
	Referrer   string    `json:"referrer" gorm:"size:500"`
}

const (
	ClickStreamName    = "CLICKS"
	ClickStreamSubject = "clicks.events"
	// ClickSubjectAll matches every per-link subject under the stream.
	ClickSubjectAll     = ClickStreamSubject + ".>"
	ClickConsumerName   = "click-logger"
	ClickStreamMaxBytes = 1024 * 1024 * 100 // 100MB

	// ClickMaxDeliveries bounds redelivery of a poisoned event before it
	// is dead-lettered (logged and acked) so the pipeline never stalls.
	ClickMaxDeliveries = 5
)

// ClickSubject returns the per-link subject an event is published to.
// Same-link events share a subject and therefore keep relative order.
func ClickSubject(code string) string {
	return ClickStreamSubject + "." + code
}
