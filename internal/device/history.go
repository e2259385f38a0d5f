package device

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"arise/internal/attendance"
	"arise/internal/queue"
)

// History archives heartbeats in Postgres.
type History struct {
	db *sql.DB
}

func NewHistory(db *sql.DB) *History {
	return &History{db: db}
}

// Record stores one heartbeat.
func (h *History) Record(ctx context.Context, t attendance.DeviceTelemetry) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO device_heartbeats (mac_address, wifi_strength, battery, queue_count, sync_count, received_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.MACAddress, t.WiFiStrength, t.Battery, t.QueueCount, t.SyncCount, t.ReceivedAt)
	if err != nil {
		return fmt.Errorf("record heartbeat: %w", err)
	}
	return nil
}

// Recorder persists a heartbeat. *History implements it.
type Recorder interface {
	Record(ctx context.Context, t attendance.DeviceTelemetry) error
}

// RunHistory consumes heartbeat messages until ctx is done or the queue closes.
// Malformed messages and failed writes are logged and skipped.
func RunHistory(ctx context.Context, q queue.Queue, rec Recorder, log *zap.Logger) error {
	msgs, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	for msg := range msgs {
		if msg.Type != queue.TypeHeartbeat {
			log.Warn("unknown message type", zap.String("type", msg.Type), zap.String("id", msg.ID))
			continue
		}
		var t attendance.DeviceTelemetry
		if err := msg.Decode(&t); err != nil {
			log.Warn("dropping heartbeat", zap.Error(err))
			continue
		}
		if err := rec.Record(ctx, t); err != nil {
			log.Error("archive heartbeat", zap.String("mac", t.MACAddress), zap.Error(err))
			continue
		}
		log.Debug("heartbeat archived", zap.String("mac", t.MACAddress), zap.String("id", msg.ID))
	}
	return ctx.Err()
}
