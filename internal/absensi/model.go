package absensi

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidWaktu   = errors.New("unknown waktu_sholat")
	ErrInvalidStatus  = errors.New("unknown status")
	ErrSantriNotFound = errors.New("santri not found")
	ErrEventNotFound  = errors.New("attendance event not found")
)

// Waktu is one of the five daily prayer times.
type Waktu string

const (
	Subuh   Waktu = "subuh"
	Dzuhur  Waktu = "dzuhur"
	Ashar   Waktu = "ashar"
	Maghrib Waktu = "maghrib"
	Isya    Waktu = "isya"
)

// AllWaktu lists prayer times in the order of the day.
var AllWaktu = []Waktu{Subuh, Dzuhur, Ashar, Maghrib, Isya}

// Valid reports whether w is a known prayer time.
func (w Waktu) Valid() bool {
	for _, v := range AllWaktu {
		if w == v {
			return true
		}
	}
	return false
}

// ParseWaktu normalises and validates a prayer time.
func ParseWaktu(s string) (Waktu, error) {
	w := Waktu(strings.ToLower(strings.TrimSpace(s)))
	if !w.Valid() {
		return "", ErrInvalidWaktu
	}
	return w, nil
}

// Status is the attendance outcome for one prayer.
type Status string

const (
	Hadir      Status = "hadir"
	Alfa       Status = "alfa"
	Sakit      Status = "sakit"
	Izin       Status = "izin"
	Haid       Status = "haid"
	Istihadhoh Status = "istihadhoh"
)

// AllStatus lists every attendance status.
var AllStatus = []Status{Hadir, Alfa, Sakit, Izin, Haid, Istihadhoh}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range AllStatus {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus normalises and validates a status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", ErrInvalidStatus
	}
	return st, nil
}

// Event is one recorded attendance: a santri at a prayer time on a day.
// Stored values are not trusted; aggregation re-validates Waktu and Status.
type Event struct {
	ID          string    `json:"id"`
	Tanggal     string    `json:"tanggal"`
	Waktu       Waktu     `json:"waktu_sholat"`
	Status      Status    `json:"status"`
	SantriID    string    `json:"santri_id"`
	PengabsenID string    `json:"pengabsen_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// EventFilter selects events by day range and optionally by student.
type EventFilter struct {
	Start     string
	End       string
	SantriIDs []string
}
