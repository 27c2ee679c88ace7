package journal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"riskpool/core/events"
)

// EventRecord is one persisted ledger event. Attributes are stored as a JSON
// object so the journal needs no per-event schema.
type EventRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Type       string    `gorm:"index"`
	Attributes string
	CreatedAt  time.Time `gorm:"index"`
}

// Journal persists every emitted ledger event for audit and replay. It
// implements events.Emitter so it can be wired directly into the engines,
// alone or composed through events.MultiEmitter.
type Journal struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open opens (or creates) a journal database at the given path. Use
// "file::memory:" for an ephemeral journal in tests.
func Open(path string) (*Journal, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&EventRecord{}); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return &Journal{db: db}, nil
}

// SetLogger attaches a logger for reporting persistence failures. Emit has
// no error return, so failures are logged instead of dropped silently.
func (j *Journal) SetLogger(l *slog.Logger) {
	if j == nil {
		return
	}
	j.logger = l
}

// Emit implements the events.Emitter interface.
func (j *Journal) Emit(evt events.Event) {
	if j == nil || j.db == nil || evt == nil {
		return
	}
	rendered := evt.Event()
	if rendered == nil {
		return
	}
	attrs, err := json.Marshal(rendered.Attributes)
	if err != nil {
		j.logError("encode event attributes", err)
		return
	}
	record := &EventRecord{
		ID:         uuid.New(),
		Type:       rendered.Type,
		Attributes: string(attrs),
		CreatedAt:  time.Now().UTC(),
	}
	if err := j.db.Create(record).Error; err != nil {
		j.logError("persist event", err)
	}
}

func (j *Journal) logError(action string, err error) {
	if j.logger == nil {
		return
	}
	j.logger.Error("journal "+action+" failed", "error", err)
}

// EventsByType returns the most recent records of the given type, newest
// first, up to limit. A non-positive limit returns everything.
func (j *Journal) EventsByType(eventType string, limit int) ([]EventRecord, error) {
	if j == nil || j.db == nil {
		return nil, fmt.Errorf("journal: not open")
	}
	query := j.db.Where("type = ?", eventType).Order("created_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var records []EventRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Count returns the total number of persisted events.
func (j *Journal) Count() (int64, error) {
	if j == nil || j.db == nil {
		return 0, fmt.Errorf("journal: not open")
	}
	var count int64
	if err := j.db.Model(&EventRecord{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Attributes decodes the record's JSON attribute map.
func (r *EventRecord) AttributeMap() (map[string]string, error) {
	out := make(map[string]string)
	if r == nil || r.Attributes == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(r.Attributes), &out); err != nil {
		return nil, err
	}
	return out, nil
}
