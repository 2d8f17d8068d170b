package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"absensi/internal/absensi"
	"absensi/internal/master"
	"absensi/internal/metrics"
	"absensi/internal/queue"
)

// Sender delivers a push.
type Sender interface {
	Send(ctx context.Context, p Push) error
}

// Directory resolves who to notify about a student.
type Directory interface {
	GetSantri(ctx context.Context, id string) (master.Santri, error)
	ListDevices(ctx context.Context, waliID string) ([]master.Device, error)
}

// Dispatcher turns queue messages into guardian pushes.
type Dispatcher struct {
	dir    Directory
	sender Sender
	log    *zap.Logger
}

// NewDispatcher builds a dispatcher.
func NewDispatcher(dir Directory, sender Sender, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{dir: dir, sender: sender, log: log}
}

// Handle processes one message and returns the number of pushes sent.
// Unknown message types are ignored.
func (d *Dispatcher) Handle(ctx context.Context, msg queue.Message) (int, error) {
	if msg.Type != queue.TypeAbsensiRecorded {
		return 0, nil
	}
	var rec absensi.Recorded
	if err := msg.Decode(&rec); err != nil {
		return 0, err
	}

	santri, err := d.dir.GetSantri(ctx, rec.SantriID)
	if err != nil {
		return 0, fmt.Errorf("santri %s: %w", rec.SantriID, err)
	}
	if santri.WaliID == "" {
		metrics.NotificationsSent.WithLabelValues("no_wali").Inc()
		return 0, nil
	}
	devices, err := d.dir.ListDevices(ctx, santri.WaliID)
	if err != nil {
		return 0, fmt.Errorf("devices of wali %s: %w", santri.WaliID, err)
	}

	push := Message(santri, rec)
	sent := 0
	for _, dev := range devices {
		push.Token = dev.Token
		err := d.sender.Send(ctx, push)
		switch {
		case err == nil:
			sent++
			metrics.NotificationsSent.WithLabelValues("sent").Inc()
		case errors.Is(err, ErrUnregistered):
			metrics.NotificationsSent.WithLabelValues("unregistered").Inc()
			d.log.Info("stale device token", zap.String("wali_id", santri.WaliID))
		default:
			metrics.NotificationsSent.WithLabelValues("failed").Inc()
			d.log.Warn("push failed", zap.String("event_id", rec.EventID), zap.Error(err))
		}
	}
	return sent, nil
}

// Consumer is the receiving side of a queue.
type Consumer interface {
	Consume(ctx context.Context) (<-chan queue.Message, error)
}

// Run consumes q until ctx ends. Failed messages are logged and dropped.
func (d *Dispatcher) Run(ctx context.Context, q Consumer) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume init: %w", err)
	}
	for msg := range messages {
		sent, err := d.Handle(ctx, msg)
		if err != nil {
			d.log.Warn("notification failed", zap.String("type", msg.Type), zap.Error(err))
			continue
		}
		if sent > 0 {
			d.log.Debug("notification sent", zap.Int("devices", sent))
		}
	}
	return nil
}

// Message builds the guardian notification for an event.
func Message(s master.Santri, rec absensi.Recorded) Push {
	return Push{
		Title: "Absensi Sholat",
		Body:  fmt.Sprintf("%s tercatat %s pada sholat %s (%s)", s.Nama, rec.Status, rec.Waktu, rec.Tanggal),
		Data: map[string]string{
			"event_id":     rec.EventID,
			"santri_id":    rec.SantriID,
			"tanggal":      rec.Tanggal,
			"waktu_sholat": string(rec.Waktu),
			"status":       string(rec.Status),
		},
	}
}
