// Package eventsink archives committed vault events in a SQL database so
// indexers can page through them.
package eventsink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rwavault/core/events"
)

// DefaultPageSize bounds List when no limit is supplied.
const DefaultPageSize = 100

// MaxPageSize caps a single List call.
const MaxPageSize = 1000

// Record is one archived event.
type Record struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Sequence   uint64    `gorm:"column:seq;uniqueIndex;not null" json:"sequence"`
	Type       string    `gorm:"index;not null" json:"type"`
	Actor      string    `gorm:"index" json:"actor,omitempty"`
	Attributes string    `gorm:"type:text;not null" json:"attributes"`
	RecordedAt time.Time `gorm:"index" json:"recordedAt"`
}

// TableName pins the archive table name.
func (Record) TableName() string { return "vault_events" }

// Decode returns the archived attributes.
func (r Record) Decode() (map[string]string, error) {
	out := make(map[string]string)
	if strings.TrimSpace(r.Attributes) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(r.Attributes), &out); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	return out, nil
}

// MaxBacklog bounds the events held for retry after failed writes.
const MaxBacklog = 10_000

// Sink persists events. It implements events.Emitter. Emitters cannot fail the
// operation that raised the event, so failed writes are kept in a backlog and
// retried in order before the next event is stored.
type Sink struct {
	db     *gorm.DB
	logger *slog.Logger
	nowFn  func() time.Time

	mu      sync.Mutex
	next    uint64
	backlog []pendingEvent
}

type pendingEvent struct {
	typ        string
	actor      string
	attributes string
	recordedAt time.Time
}

// Open connects to dsn. postgres:// and postgresql:// URLs use the postgres
// driver; anything else is treated as an SQLite path.
func Open(dsn string, log *slog.Logger) (*Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("eventsink: dsn required")
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	var (
		db  *gorm.DB
		err error
	)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	} else {
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
		if err == nil {
			// SQLite serialises writers; a single connection also keeps
			// in-memory databases coherent.
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				sqlDB.SetMaxOpenConns(1)
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("eventsink: open database: %w", err)
	}
	return New(db, log)
}

// New migrates the archive schema on db and resumes sequencing after the
// highest archived record.
func New(db *gorm.DB, log *slog.Logger) (*Sink, error) {
	if db == nil {
		return nil, errors.New("eventsink: database required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("eventsink: migrate: %w", err)
	}
	var last struct{ Max *uint64 }
	if err := db.Model(&Record{}).Select("MAX(seq) AS max").Scan(&last).Error; err != nil {
		return nil, fmt.Errorf("eventsink: load sequence: %w", err)
	}
	next := uint64(1)
	if last.Max != nil {
		next = *last.Max + 1
	}
	return &Sink{
		db:     db,
		logger: log.With("component", "eventsink"),
		nowFn:  time.Now,
		next:   next,
	}, nil
}

// SetNowFunc overrides the clock used for RecordedAt.
func (s *Sink) SetNowFunc(now func() time.Time) {
	if now != nil {
		s.nowFn = now
	}
}

// Emit archives evt. Events without a structured payload are skipped.
func (s *Sink) Emit(evt events.Event) {
	if s == nil {
		return
	}
	pending, ok, err := s.prepare(evt)
	if err != nil {
		s.logger.Error("archive event dropped", "type", evt.EventType(), "error", err)
		return
	}
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.backlog) >= MaxBacklog {
		s.logger.Error("archive backlog full, dropping oldest event", "type", s.backlog[0].typ)
		s.backlog = s.backlog[1:]
	}
	s.backlog = append(s.backlog, pending)
	if _, err := s.drainLocked(context.Background()); err != nil {
		s.logger.Error("archive event failed", "type", pending.typ, "pending", len(s.backlog), "error", err)
	}
}

// Append archives evt after any pending events and returns the stored record,
// or nil when evt carries no payload.
func (s *Sink) Append(ctx context.Context, evt events.Event) (*Record, error) {
	pending, ok, err := s.prepare(evt)
	if err != nil || !ok {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.drainLocked(ctx); err != nil {
		return nil, err
	}
	return s.insertLocked(ctx, pending)
}

// Flush retries pending writes in order.
func (s *Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, err := s.drainLocked(ctx)
	if stored > 0 {
		s.logger.Info("archive backlog flushed", "stored", stored, "pending", len(s.backlog))
	}
	return err
}

// Pending reports how many events await a retry.
func (s *Sink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.backlog)
}

func (s *Sink) prepare(evt events.Event) (pendingEvent, bool, error) {
	payload := events.Payload(evt)
	if payload == nil {
		return pendingEvent{}, false, nil
	}
	attrs, err := json.Marshal(payload.Attributes)
	if err != nil {
		return pendingEvent{}, false, fmt.Errorf("encode attributes: %w", err)
	}
	return pendingEvent{
		typ:        payload.Type,
		actor:      payload.Attr("actor"),
		attributes: string(attrs),
		recordedAt: s.nowFn().UTC(),
	}, true, nil
}

func (s *Sink) drainLocked(ctx context.Context) (int, error) {
	stored := 0
	for len(s.backlog) > 0 {
		if _, err := s.insertLocked(ctx, s.backlog[0]); err != nil {
			return stored, err
		}
		s.backlog = s.backlog[1:]
		stored++
	}
	s.backlog = nil
	return stored, nil
}

func (s *Sink) insertLocked(ctx context.Context, pending pendingEvent) (*Record, error) {
	record := &Record{
		ID:         uuid.New(),
		Sequence:   s.next,
		Type:       pending.typ,
		Actor:      pending.actor,
		Attributes: pending.attributes,
		RecordedAt: pending.recordedAt,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	s.next++
	return record, nil
}

// List returns up to limit records with a sequence above afterSeq in order.
func (s *Sink) List(ctx context.Context, afterSeq uint64, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	var out []Record
	err := s.db.WithContext(ctx).
		Where("seq > ?", afterSeq).
		Order("seq ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("eventsink: list: %w", err)
	}
	return out, nil
}

// Close releases the database handle.
func (s *Sink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
