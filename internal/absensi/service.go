package absensi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"absensi/internal/clock"
	"absensi/internal/master"
	"absensi/internal/metrics"
	"absensi/internal/queue"
)

// Reference is the read side of the reference data the service joins against.
type Reference interface {
	GetSantri(ctx context.Context, id string) (master.Santri, error)
	GetSantriByNIS(ctx context.Context, nis string) (master.Santri, error)
	ListSantri(ctx context.Context, f master.SantriFilter) ([]master.Santri, error)
	ListRecorders(ctx context.Context) ([]master.Recorder, error)
}

// Publisher receives a message for every newly stored event.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Recorded is the queue payload announcing a new event.
type Recorded struct {
	EventID  string `json:"event_id"`
	SantriID string `json:"santri_id"`
	Tanggal  string `json:"tanggal"`
	Waktu    Waktu  `json:"waktu_sholat"`
	Status   Status `json:"status"`
}

// Options carries the optional collaborators of a Service.
type Options struct {
	Cache     Cache
	Publisher Publisher
	Logger    *zap.Logger
}

// Service records attendance and builds reports.
type Service struct {
	events Store
	ref    Reference
	clock  *clock.Resolver
	cache  Cache
	pub    Publisher
	log    *zap.Logger
}

// NewService creates a service backed by an event store and reference data.
func NewService(events Store, ref Reference, resolver *clock.Resolver, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		events: events,
		ref:    ref,
		clock:  resolver,
		cache:  opts.Cache,
		pub:    opts.Publisher,
		log:    log,
	}
}

// Clock exposes the resolver every "today" in the service is computed with.
func (s *Service) Clock() *clock.Resolver { return s.clock }

// RecordInput is a single attendance submission. Either SantriID or NIS
// identifies the student; an empty Tanggal means today.
type RecordInput struct {
	SantriID    string
	NIS         string
	Tanggal     string
	Waktu       string
	Status      string
	PengabsenID string
}

// Record stores an attendance event. Submitting the same santri, day and
// prayer time twice returns the first event with created=false.
func (s *Service) Record(ctx context.Context, in RecordInput) (Event, bool, error) {
	waktu, err := ParseWaktu(in.Waktu)
	if err != nil {
		return Event{}, false, err
	}
	status, err := ParseStatus(in.Status)
	if err != nil {
		return Event{}, false, err
	}
	tanggal := strings.TrimSpace(in.Tanggal)
	if tanggal == "" {
		tanggal = s.clock.Today()
	} else if _, err := s.clock.ParseDate(tanggal); err != nil {
		return Event{}, false, err
	}

	santri, err := s.lookupSantri(ctx, in.SantriID, in.NIS)
	if err != nil {
		return Event{}, false, err
	}

	evt, created, err := s.events.Insert(ctx, Event{
		Tanggal:     tanggal,
		Waktu:       waktu,
		Status:      status,
		SantriID:    santri.ID,
		PengabsenID: in.PengabsenID,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return Event{}, false, fmt.Errorf("insert absensi: %w", err)
	}
	if !created {
		metrics.AbsensiDuplicate.Inc()
		return evt, false, nil
	}

	metrics.AbsensiRecorded.WithLabelValues(string(evt.Waktu), string(evt.Status)).Inc()
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.log.Warn("riwayat cache bump failed", zap.Error(err))
		}
	}
	if s.pub != nil {
		msg, err := queue.NewMessage(queue.TypeAbsensiRecorded, Recorded{
			EventID:  evt.ID,
			SantriID: evt.SantriID,
			Tanggal:  evt.Tanggal,
			Waktu:    evt.Waktu,
			Status:   evt.Status,
		})
		if err == nil {
			err = s.pub.Publish(ctx, msg)
		}
		if err != nil {
			s.log.Warn("queue publish failed", zap.String("event_id", evt.ID), zap.Error(err))
		}
	}
	return evt, true, nil
}

func (s *Service) lookupSantri(ctx context.Context, id, nis string) (master.Santri, error) {
	var (
		santri master.Santri
		err    error
	)
	switch {
	case strings.TrimSpace(id) != "":
		santri, err = s.ref.GetSantri(ctx, strings.TrimSpace(id))
	case strings.TrimSpace(nis) != "":
		santri, err = s.ref.GetSantriByNIS(ctx, master.NISFromPayload(strings.TrimSpace(nis)))
	default:
		return master.Santri{}, fmt.Errorf("%w: santri_id or nis required", ErrSantriNotFound)
	}
	if errors.Is(err, master.ErrNotFound) {
		return master.Santri{}, ErrSantriNotFound
	}
	return santri, err
}

// Event returns a stored event.
func (s *Service) Event(ctx context.Context, id string) (Event, error) {
	return s.events.Get(ctx, id)
}

// Query selects a report. Start and End follow clock.Resolver.Range rules.
type Query struct {
	Start  string
	End    string
	Filter master.SantriFilter
}

// Riwayat builds the report for q. Invalid dates fail the whole request.
func (s *Service) Riwayat(ctx context.Context, q Query) (Riwayat, error) {
	start, end, err := s.clock.Range(strings.TrimSpace(q.Start), strings.TrimSpace(q.End))
	if err != nil {
		return Riwayat{}, err
	}
	q.Start, q.End = start, end

	began := time.Now()
	cacheLabel := "off"
	defer func() {
		metrics.RiwayatDuration.WithLabelValues(cacheLabel).Observe(time.Since(began).Seconds())
	}()

	var key string
	if s.cache != nil {
		cacheLabel = "miss"
		if v, err := s.cache.Version(ctx); err != nil {
			s.log.Warn("riwayat cache version failed", zap.Error(err))
		} else {
			key = cacheKey(v, q)
			if r, ok, err := s.cache.Get(ctx, key); err != nil {
				s.log.Warn("riwayat cache get failed", zap.Error(err))
			} else if ok {
				cacheLabel = "hit"
				return r, nil
			}
		}
	}

	santri, err := s.ref.ListSantri(ctx, q.Filter)
	if err != nil {
		return Riwayat{}, fmt.Errorf("list santri: %w", err)
	}

	var events []Event
	ef := EventFilter{Start: start, End: end}
	if q.Filter.WaliID != "" {
		for _, st := range santri {
			ef.SantriIDs = append(ef.SantriIDs, st.ID)
		}
	}
	// A guardian without children sees nothing rather than every event.
	if q.Filter.WaliID == "" || len(ef.SantriIDs) > 0 {
		events, err = s.events.List(ctx, ef)
		if err != nil {
			return Riwayat{}, fmt.Errorf("list absensi: %w", err)
		}
	}

	recorders, err := s.ref.ListRecorders(ctx)
	if err != nil {
		return Riwayat{}, fmt.Errorf("list recorders: %w", err)
	}

	r := BuildRiwayat(events, santri, recorders)
	if key != "" {
		if err := s.cache.Set(ctx, key, r); err != nil {
			s.log.Warn("riwayat cache set failed", zap.Error(err))
		}
	}
	return r, nil
}

// Today builds the report for the resolver's current day and returns that day.
func (s *Service) Today(ctx context.Context, f master.SantriFilter) (string, Riwayat, error) {
	today := s.clock.Today()
	r, err := s.Riwayat(ctx, Query{Start: today, End: today, Filter: f})
	return today, r, err
}
