package master

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicate     = errors.New("already exists")
	ErrInvalidGender = errors.New("gender must be L or P")
	ErrInvalidRole   = errors.New("unknown role")
)

// Role is an account role.
type Role string

const (
	RoleAdmin      Role = "admin"
	RolePengabsen  Role = "pengabsen"
	RoleWali       Role = "wali"
	RolePembimbing Role = "pembimbing"
)

// ParseRole normalises and validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RolePengabsen, RoleWali, RolePembimbing:
		return r, nil
	}
	return "", ErrInvalidRole
}

// Records reports whether accounts of this role take attendance.
func (r Role) Records() bool { return r == RolePengabsen || r == RolePembimbing }

// Gender values as stored on santri and asrama.
const (
	GenderL = "L"
	GenderP = "P"
)

// NormalizeGender upper-cases and validates a gender code. Empty stays empty.
func NormalizeGender(s string) (string, error) {
	g := strings.ToUpper(strings.TrimSpace(s))
	switch g {
	case "", GenderL, GenderP:
		return g, nil
	}
	return "", ErrInvalidGender
}

// Santri is a student resident.
type Santri struct {
	ID        string    `json:"id"`
	Nama      string    `json:"nama"`
	NIS       string    `json:"nis"`
	AsramaID  string    `json:"asrama_id"`
	Gender    string    `json:"gender"`
	WaliID    string    `json:"wali_id,omitempty"`
	FotoURL   string    `json:"foto_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Asrama is a dormitory.
type Asrama struct {
	ID        string    `json:"id"`
	Nama      string    `json:"nama"`
	Gender    string    `json:"gender"`
	CreatedAt time.Time `json:"created_at"`
}

// Akun is a login account. Username holds the phone number for wali.
type Akun struct {
	ID         string    `json:"id"`
	Role       Role      `json:"role"`
	Nama       string    `json:"nama"`
	Username   string    `json:"username"`
	SecretHash string    `json:"-"`
	AsramaID   string    `json:"asrama_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Recorder is anyone who may appear as pengabsen_id on an attendance event.
type Recorder struct {
	ID   string `json:"id"`
	Nama string `json:"nama"`
}

// Device is a guardian push registration.
type Device struct {
	WaliID    string    `json:"wali_id"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// SantriFilter narrows santri listings. Zero values match everything.
type SantriFilter struct {
	AsramaID string
	Gender   string
	WaliID   string
}

// Match reports whether s passes the filter.
func (f SantriFilter) Match(s Santri) bool {
	if f.AsramaID != "" && s.AsramaID != f.AsramaID {
		return false
	}
	if f.Gender != "" && !strings.EqualFold(s.Gender, f.Gender) {
		return false
	}
	if f.WaliID != "" && s.WaliID != f.WaliID {
		return false
	}
	return true
}
