package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Douglasgls/zona-verde-app/internal/domain/parking"
)

// flexNumber accepts a JSON number or a numeric string; the recognition feed
// sends ids and similarity scores in both forms.
type flexNumber string

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexNumber(s)
		return nil
	}
	*f = flexNumber(data)
	return nil
}

type wireEvent struct {
	ID            flexNumber `json:"id"`
	Status        string     `json:"status"`
	IsAlert       bool       `json:"is_alert"`
	PlateOCR      string     `json:"plate_ocr"`
	PlateDB       string     `json:"plate_db"`
	Similarity    flexNumber `json:"similarity"`
	CurrentStatus string     `json:"current_status"`
	LastTime      string     `json:"last_time"`
	ImageURL      string     `json:"image_url"`
}

// decodeEvent parses one feed message. hasID reports whether the message
// carried a recognizable spot identifier; messages without one must not be
// applied to the store but may still carry an image_url.
func decodeEvent(data []byte) (event parking.TelemetryEvent, hasID bool, err error) {
	var wire wireEvent
	if err := json.Unmarshal(data, &wire); err != nil {
		return parking.TelemetryEvent{}, false, fmt.Errorf("malformed event payload: %w", err)
	}

	event = parking.TelemetryEvent{
		IsAlert:  wire.IsAlert,
		PlateOCR: wire.PlateOCR,
		PlateDB:  wire.PlateDB,
		LastTime: wire.LastTime,
		ImageURL: wire.ImageURL,
	}

	status := wire.Status
	if status == "" {
		status = wire.CurrentStatus
	}
	event.Status = parking.PresenceStatus(status)

	if wire.Similarity != "" {
		if score, err := strconv.ParseFloat(string(wire.Similarity), 64); err == nil {
			event.Similarity = &score
		}
	}

	if wire.ID != "" {
		if id, err := strconv.Atoi(string(wire.ID)); err == nil && id > 0 {
			event.SpotID = id
			hasID = true
		}
	}

	return event, hasID, nil
}
