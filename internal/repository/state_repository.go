package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Douglasgls/zona-verde-app/internal/domain/parking"
)

const (
	telemetrySnapshotKey = "telemetry_snapshot"
	ackKeyPrefix         = "ignored_alert_"
)

// StateRepository persists console-local state (last-known telemetry and
// alert acknowledgments) in the local_state key-value table.
type StateRepository struct {
	db *gorm.DB
}

func NewStateRepository(db *gorm.DB) *StateRepository {
	return &StateRepository{db: db}
}

type LocalState struct {
	Key       string         `gorm:"primaryKey;column:key"`
	Value     datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

func (LocalState) TableName() string {
	return "local_state"
}

func (r *StateRepository) put(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode state %s: %w", key, err)
	}

	entry := LocalState{
		Key:       key,
		Value:     datatypes.JSON(raw),
		UpdatedAt: time.Now(),
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&entry).Error
}

func (r *StateRepository) get(ctx context.Context, key string, out interface{}) (bool, error) {
	var entry LocalState
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(entry.Value, out); err != nil {
		return false, fmt.Errorf("failed to decode state %s: %w", key, err)
	}
	return true, nil
}

// SaveTelemetrySnapshot stores the full last-known-event map under one key
// so a restart does not lose telemetry received before it.
func (r *StateRepository) SaveTelemetrySnapshot(ctx context.Context, events map[int]parking.TelemetryEvent) error {
	return r.put(ctx, telemetrySnapshotKey, events)
}

func (r *StateRepository) LoadTelemetrySnapshot(ctx context.Context) (map[int]parking.TelemetryEvent, error) {
	events := make(map[int]parking.TelemetryEvent)
	found, err := r.get(ctx, telemetrySnapshotKey, &events)
	if err != nil {
		return nil, err
	}
	if !found {
		return map[int]parking.TelemetryEvent{}, nil
	}
	return events, nil
}

func ackKey(spotID int) string {
	return fmt.Sprintf("%s%d", ackKeyPrefix, spotID)
}

// SetAcknowledgment records the timestamp of the last acknowledged alert for
// a spot. Entries are only ever written by an explicit user action and never
// expire.
func (r *StateRepository) SetAcknowledgment(ctx context.Context, spotID int, timestamp string) error {
	return r.put(ctx, ackKey(spotID), timestamp)
}

func (r *StateRepository) Acknowledgment(ctx context.Context, spotID int) (string, bool, error) {
	var ts string
	found, err := r.get(ctx, ackKey(spotID), &ts)
	if err != nil {
		return "", false, err
	}
	return ts, found, nil
}

// Acknowledgments loads every stored acknowledgment, keyed by spot id.
func (r *StateRepository) Acknowledgments(ctx context.Context) (map[int]string, error) {
	var entries []LocalState
	err := r.db.WithContext(ctx).
		Where("key LIKE ?", ackKeyPrefix+"%").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	result := make(map[int]string, len(entries))
	for _, entry := range entries {
		var spotID int
		if _, err := fmt.Sscanf(strings.TrimPrefix(entry.Key, ackKeyPrefix), "%d", &spotID); err != nil {
			continue
		}
		var ts string
		if err := json.Unmarshal(entry.Value, &ts); err != nil {
			continue
		}
		result[spotID] = ts
	}
	return result, nil
}
