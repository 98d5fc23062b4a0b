package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"Wonderland/internal/domain/models"
	domrepo "Wonderland/internal/domain/repository"
	pkgch "Wonderland/pkg/clickhouse"
	applogger "Wonderland/pkg/logger"
)

// journalSchema holds one append-only MergeTree table per record kind.
// Nested values are stored as JSON strings.
var journalSchema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id String,
		type LowCardinality(String),
		description String,
		payload String,
		ts DateTime64(3, 'UTC')
	) ENGINE = MergeTree ORDER BY ts`,
	`CREATE TABLE IF NOT EXISTS market_state (
		id String,
		digest String,
		pairs String,
		prices String,
		ts DateTime64(3, 'UTC')
	) ENGINE = MergeTree ORDER BY ts`,
	`CREATE TABLE IF NOT EXISTS insight_state (
		id String,
		content String,
		platform LowCardinality(String),
		model LowCardinality(String),
		ts DateTime64(3, 'UTC')
	) ENGINE = MergeTree ORDER BY ts`,
	`CREATE TABLE IF NOT EXISTS holding_state (
		id String,
		holdings String,
		total_tracked_usd Float64,
		total_untracked_usd Float64,
		ts DateTime64(3, 'UTC')
	) ENGINE = MergeTree ORDER BY ts`,
	`CREATE TABLE IF NOT EXISTS action_state (
		id String,
		action String,
		reason String,
		details String,
		ts DateTime64(3, 'UTC')
	) ENGINE = MergeTree ORDER BY ts`,
	`CREATE TABLE IF NOT EXISTS tg_message (
		id String,
		channel LowCardinality(String),
		content String,
		status LowCardinality(String),
		ts DateTime64(3, 'UTC')
	) ENGINE = MergeTree ORDER BY ts`,
}

// CHJournal implements Journal backed by ClickHouse.
type CHJournal struct {
	ch *pkgch.Client
	db *sql.DB
	l  *applogger.Logger
}

var _ domrepo.Journal = (*CHJournal)(nil)

func NewCHJournal(ch *pkgch.Client, l *applogger.Logger) *CHJournal {
	return &CHJournal{ch: ch, db: ch.DB(), l: l.With(applogger.Component("journal"))}
}

func (s *CHJournal) Init(ctx context.Context) error {
	if err := s.ch.InitSchema(ctx, journalSchema); err != nil {
		return err
	}
	s.l.Info("clickhouse journal ready", applogger.String("database", s.ch.Database()))
	return nil
}

func (s *CHJournal) Health(ctx context.Context) error { return s.ch.Health(ctx) }

func (s *CHJournal) Close() error { return s.ch.Close() }

// AppendEvents writes events in one multi-row batch.
func (s *CHJournal) AppendEvents(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin events batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO events (id, type, description, payload, ts)")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare events batch: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		payload, err := marshalString(e.Payload)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx, e.ID, string(e.Type), e.Description, payload, e.Timestamp); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append event %s: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		s.l.Error("clickhouse events commit error", applogger.Int("rows", len(events)), applogger.Error(err))
		return fmt.Errorf("commit events batch: %w", err)
	}
	s.l.Debug("clickhouse events appended",
		applogger.Int("rows", len(events)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *CHJournal) SaveMarketSnapshot(ctx context.Context, m *models.MarketSnapshot) error {
	pairs, err := marshalString(m.Pairs)
	if err != nil {
		return err
	}
	prices, err := marshalString(m.Prices)
	if err != nil {
		return err
	}
	return s.exec(ctx, "market_state",
		"INSERT INTO market_state (id, digest, pairs, prices, ts) VALUES (?, ?, ?, ?, ?)",
		m.ID, m.Digest, pairs, prices, m.Timestamp)
}

func (s *CHJournal) SaveInsight(ctx context.Context, in *models.Insight) error {
	return s.exec(ctx, "insight_state",
		"INSERT INTO insight_state (id, content, platform, model, ts) VALUES (?, ?, ?, ?, ?)",
		in.ID, in.Content, in.Platform, in.Model, in.Timestamp)
}

func (s *CHJournal) SaveHoldingSnapshot(ctx context.Context, h *models.HoldingSnapshot) error {
	holdings, err := marshalString(h.Holdings)
	if err != nil {
		return err
	}
	return s.exec(ctx, "holding_state",
		"INSERT INTO holding_state (id, holdings, total_tracked_usd, total_untracked_usd, ts) VALUES (?, ?, ?, ?, ?)",
		h.ID, holdings, h.TotalTrackedUsd, h.TotalUntrackedUsd, h.Timestamp)
}

func (s *CHJournal) SaveAction(ctx context.Context, a *models.PortfolioAction) error {
	details, err := marshalString(a.Details)
	if err != nil {
		return err
	}
	return s.exec(ctx, "action_state",
		"INSERT INTO action_state (id, action, reason, details, ts) VALUES (?, ?, ?, ?, ?)",
		a.ID, a.Action, a.Reason, details, a.Timestamp)
}

func (s *CHJournal) SaveMessage(ctx context.Context, m *models.OutgoingMessage) error {
	return s.exec(ctx, "tg_message",
		"INSERT INTO tg_message (id, channel, content, status, ts) VALUES (?, ?, ?, ?, ?)",
		m.ID, m.Channel, m.Content, string(m.Status), m.Timestamp)
}

func (s *CHJournal) LatestMarketSnapshot(ctx context.Context) (*models.MarketSnapshot, error) {
	var m models.MarketSnapshot
	var pairs, prices string
	row := s.db.QueryRowContext(ctx, "SELECT id, digest, pairs, prices, ts FROM market_state ORDER BY ts DESC LIMIT 1")
	if err := row.Scan(&m.ID, &m.Digest, &pairs, &prices, &m.Timestamp); err != nil {
		return nil, s.scanErr("market_state", err)
	}
	if err := unmarshalString(pairs, &m.Pairs); err != nil {
		return nil, err
	}
	if err := unmarshalString(prices, &m.Prices); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *CHJournal) LatestInsight(ctx context.Context) (*models.Insight, error) {
	var in models.Insight
	row := s.db.QueryRowContext(ctx, "SELECT id, content, platform, model, ts FROM insight_state ORDER BY ts DESC LIMIT 1")
	if err := row.Scan(&in.ID, &in.Content, &in.Platform, &in.Model, &in.Timestamp); err != nil {
		return nil, s.scanErr("insight_state", err)
	}
	return &in, nil
}

func (s *CHJournal) LatestHoldingSnapshot(ctx context.Context) (*models.HoldingSnapshot, error) {
	var h models.HoldingSnapshot
	var holdings string
	row := s.db.QueryRowContext(ctx, "SELECT id, holdings, total_tracked_usd, total_untracked_usd, ts FROM holding_state ORDER BY ts DESC LIMIT 1")
	if err := row.Scan(&h.ID, &holdings, &h.TotalTrackedUsd, &h.TotalUntrackedUsd, &h.Timestamp); err != nil {
		return nil, s.scanErr("holding_state", err)
	}
	if err := unmarshalString(holdings, &h.Holdings); err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *CHJournal) RecentActions(ctx context.Context, limit int) ([]models.PortfolioAction, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, action, reason, details, ts FROM action_state ORDER BY ts DESC LIMIT ?", limit)
	if err != nil {
		s.l.Error("clickhouse recent_actions query error", applogger.Int("limit", limit), applogger.Error(err))
		return nil, fmt.Errorf("recent actions: %w", err)
	}
	defer rows.Close()

	out := make([]models.PortfolioAction, 0, limit)
	for rows.Next() {
		var a models.PortfolioAction
		var details string
		if err := rows.Scan(&a.ID, &a.Action, &a.Reason, &details, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		if err := unmarshalString(details, &a.Details); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHJournal) RecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, type, description, payload, ts FROM events ORDER BY ts DESC LIMIT ?", limit)
	if err != nil {
		s.l.Error("clickhouse recent_events query error", applogger.Int("limit", limit), applogger.Error(err))
		return nil, fmt.Errorf("recent events: %w", err)
	}
	defer rows.Close()

	out := make([]models.Event, 0, limit)
	for rows.Next() {
		var e models.Event
		var typ, payload string
		if err := rows.Scan(&e.ID, &typ, &e.Description, &payload, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = models.EventType(typ)
		if err := unmarshalString(payload, &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHJournal) exec(ctx context.Context, table, q string, args ...interface{}) error {
	start := time.Now()
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		s.l.Error("clickhouse insert error", applogger.String("table", table), applogger.Error(err))
		return fmt.Errorf("insert %s: %w", table, err)
	}
	s.l.Debug("clickhouse insert ok",
		applogger.String("table", table),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *CHJournal) scanErr(table string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domrepo.ErrNotFound
	}
	s.l.Error("clickhouse latest query error", applogger.String("table", table), applogger.Error(err))
	return fmt.Errorf("latest %s: %w", table, err)
}

func marshalString(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	return string(b), nil
}

func unmarshalString(s string, dest interface{}) error {
	if s == "" || s == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return nil
}
