// Package memstore keeps reference data and attendance events in process
// memory. It backs STORE_BACKEND=memory and the tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"absensi/internal/absensi"
	"absensi/internal/master"
)

// Store implements master.Store and absensi.Store.
type Store struct {
	mu      sync.RWMutex
	asrama  map[string]master.Asrama
	santri  map[string]master.Santri
	akun    map[string]master.Akun
	devices map[string]master.Device // by token
	events  []absensi.Event
	byKey   map[string]int // santri|tanggal|waktu -> index in events
}

// New returns an empty store.
func New() *Store {
	return &Store{
		asrama:  make(map[string]master.Asrama),
		santri:  make(map[string]master.Santri),
		akun:    make(map[string]master.Akun),
		devices: make(map[string]master.Device),
		byKey:   make(map[string]int),
	}
}

var (
	_ master.Store  = (*Store)(nil)
	_ absensi.Store = (*Store)(nil)
)

func now() time.Time { return time.Now().UTC() }

// CreateAsrama inserts a dormitory.
func (s *Store) CreateAsrama(_ context.Context, a master.Asrama) (master.Asrama, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if _, ok := s.asrama[a.ID]; ok {
		return master.Asrama{}, master.ErrDuplicate
	}
	a.CreatedAt = now()
	s.asrama[a.ID] = a
	return a, nil
}

// ListAsrama returns dormitories ordered by name.
func (s *Store) ListAsrama(_ context.Context) ([]master.Asrama, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]master.Asrama, 0, len(s.asrama))
	for _, a := range s.asrama {
		res = append(res, a)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Nama < res[j].Nama })
	return res, nil
}

// CreateSantri inserts a student; NIS must be unique.
func (s *Store) CreateSantri(_ context.Context, st master.Santri) (master.Santri, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	for _, existing := range s.santri {
		if existing.ID == st.ID || existing.NIS == st.NIS {
			return master.Santri{}, master.ErrDuplicate
		}
	}
	st.CreatedAt = now()
	s.santri[st.ID] = st
	return st, nil
}

// GetSantri returns a student by id.
func (s *Store) GetSantri(_ context.Context, id string) (master.Santri, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.santri[id]
	if !ok {
		return master.Santri{}, master.ErrNotFound
	}
	return st, nil
}

// GetSantriByNIS returns a student by registration number.
func (s *Store) GetSantriByNIS(_ context.Context, nis string) (master.Santri, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.santri {
		if st.NIS == nis {
			return st, nil
		}
	}
	return master.Santri{}, master.ErrNotFound
}

// ListSantri returns students matching f ordered by name then NIS.
func (s *Store) ListSantri(_ context.Context, f master.SantriFilter) ([]master.Santri, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []master.Santri
	for _, st := range s.santri {
		if f.Match(st) {
			res = append(res, st)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Nama != res[j].Nama {
			return res[i].Nama < res[j].Nama
		}
		return res[i].NIS < res[j].NIS
	})
	return res, nil
}

// SetSantriFoto stores a photo URL.
func (s *Store) SetSantriFoto(_ context.Context, id, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.santri[id]
	if !ok {
		return master.ErrNotFound
	}
	st.FotoURL = url
	s.santri[id] = st
	return nil
}

// UpsertAkun creates or updates an account keyed on role and username.
func (s *Store) UpsertAkun(_ context.Context, a master.Akun) (master.Akun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.akun {
		if existing.Role == a.Role && existing.Username == a.Username {
			existing.Nama = a.Nama
			existing.SecretHash = a.SecretHash
			existing.AsramaID = a.AsramaID
			s.akun[id] = existing
			return existing, nil
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = now()
	s.akun[a.ID] = a
	return a, nil
}

// GetAkun returns an account by id.
func (s *Store) GetAkun(_ context.Context, id string) (master.Akun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.akun[id]
	if !ok {
		return master.Akun{}, master.ErrNotFound
	}
	return a, nil
}

// GetAkunByUsername returns the account of role with username.
func (s *Store) GetAkunByUsername(_ context.Context, role master.Role, username string) (master.Akun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.akun {
		if a.Role == role && a.Username == username {
			return a, nil
		}
	}
	return master.Akun{}, master.ErrNotFound
}

// ListRecorders returns pengabsen and pembimbing accounts.
func (s *Store) ListRecorders(_ context.Context) ([]master.Recorder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []master.Recorder
	for _, a := range s.akun {
		if a.Role.Records() {
			res = append(res, master.Recorder{ID: a.ID, Nama: a.Nama})
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Nama < res[j].Nama })
	return res, nil
}

// UpsertDevice registers a push token to a guardian.
func (s *Store) UpsertDevice(_ context.Context, waliID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[token]
	if !ok {
		d = master.Device{Token: token, CreatedAt: now()}
	}
	d.WaliID = waliID
	s.devices[token] = d
	return nil
}

// ListDevices returns the push tokens of a guardian.
func (s *Store) ListDevices(_ context.Context, waliID string) ([]master.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []master.Device
	for _, d := range s.devices {
		if d.WaliID == waliID {
			res = append(res, d)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func eventKey(santriID, tanggal string, w absensi.Waktu) string {
	return strings.Join([]string{santriID, tanggal, string(w)}, "|")
}

// Insert appends an event unless one exists for the same natural key.
func (s *Store) Insert(_ context.Context, e absensi.Event) (absensi.Event, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := eventKey(e.SantriID, e.Tanggal, e.Waktu)
	if i, ok := s.byKey[key]; ok {
		return s.events[i], false, nil
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now()
	}
	s.byKey[key] = len(s.events)
	s.events = append(s.events, e)
	return e, true, nil
}

// Seed appends events verbatim, bypassing validation and deduplication. It
// lets tests reproduce rows written by older clients.
func (s *Store) Seed(events ...absensi.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		s.events = append(s.events, e)
	}
}

// Get returns an event by id.
func (s *Store) Get(_ context.Context, id string) (absensi.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.events {
		if e.ID == id {
			return e, nil
		}
	}
	return absensi.Event{}, absensi.ErrEventNotFound
}

// List returns events in the inclusive range, oldest day first, insertion
// order within a day.
func (s *Store) List(_ context.Context, f absensi.EventFilter) ([]absensi.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var only map[string]bool
	if len(f.SantriIDs) > 0 {
		only = make(map[string]bool, len(f.SantriIDs))
		for _, id := range f.SantriIDs {
			only[id] = true
		}
	}
	var res []absensi.Event
	for _, e := range s.events {
		// YYYY-MM-DD compares correctly as a string.
		if e.Tanggal < f.Start || e.Tanggal > f.End {
			continue
		}
		if only != nil && !only[e.SantriID] {
			continue
		}
		res = append(res, e)
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Tanggal < res[j].Tanggal })
	return res, nil
}
