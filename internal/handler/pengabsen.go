package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"absensi/internal/absensi"
	"absensi/internal/master"
)

type recordRequest struct {
	SantriID string `json:"santri_id"`
	NIS      string `json:"nis"`
	Waktu    string `json:"waktu_sholat" binding:"required"`
	Status   string `json:"status" binding:"required"`
	Tanggal  string `json:"tanggal"`
}

// RecordAbsensi: POST /pengabsen/absensi. Returns 201 for a new event and 200
// with the stored event when the santri already has one for that prayer.
func (h *Handler) RecordAbsensi(c *gin.Context) {
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.SantriID == "" && req.NIS == "" {
		badRequest(c, "santri_id or nis required")
		return
	}
	evt, created, err := h.svc.Record(c.Request.Context(), absensi.RecordInput{
		SantriID:    req.SantriID,
		NIS:         req.NIS,
		Tanggal:     req.Tanggal,
		Waktu:       req.Waktu,
		Status:      req.Status,
		PengabsenID: claims(c).Subject,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"absensi": evt, "created": created})
}

// PengabsenToday: GET /pengabsen/absensi/today?asrama_id=&gender=
func (h *Handler) PengabsenToday(c *gin.Context) {
	f, err := santriFilter(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.today(c, f)
}

// SantriByNIS resolves a scanned QR payload or a typed NIS.
func (h *Handler) SantriByNIS(c *gin.Context) {
	s, err := h.ref.GetSantriByNIS(c.Request.Context(), master.NISFromPayload(c.Param("nis")))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// ---------- Pembimbing ----------

// pembimbingFilter scopes a pembimbing to their own asrama. A gender query
// parameter may narrow it further.
func (h *Handler) pembimbingFilter(c *gin.Context) (master.SantriFilter, bool) {
	akun, err := h.ref.GetAkun(c.Request.Context(), claims(c).Subject)
	if err != nil {
		h.fail(c, err)
		return master.SantriFilter{}, false
	}
	if akun.AsramaID == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "pembimbing has no asrama"})
		return master.SantriFilter{}, false
	}
	gender, err := master.NormalizeGender(c.Query("gender"))
	if err != nil {
		h.fail(c, err)
		return master.SantriFilter{}, false
	}
	return master.SantriFilter{AsramaID: akun.AsramaID, Gender: gender}, true
}

func (h *Handler) PembimbingToday(c *gin.Context) {
	if f, ok := h.pembimbingFilter(c); ok {
		h.today(c, f)
	}
}

func (h *Handler) PembimbingRiwayat(c *gin.Context) {
	if f, ok := h.pembimbingFilter(c); ok {
		h.riwayat(c, f)
	}
}

// ---------- Wali ----------

func waliFilter(c *gin.Context) master.SantriFilter {
	return master.SantriFilter{WaliID: claims(c).Subject}
}

func (h *Handler) WaliToday(c *gin.Context) { h.today(c, waliFilter(c)) }

func (h *Handler) WaliRiwayat(c *gin.Context) { h.riwayat(c, waliFilter(c)) }

// WaliSantri lists the caller's children.
func (h *Handler) WaliSantri(c *gin.Context) {
	list, err := h.ref.ListSantri(c.Request.Context(), waliFilter(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if list == nil {
		list = []master.Santri{}
	}
	c.JSON(http.StatusOK, gin.H{"santri": list})
}

// RegisterDevice stores an FCM token for the calling wali.
func (h *Handler) RegisterDevice(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.ref.UpsertDevice(c.Request.Context(), claims(c).Subject, req.Token); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": req.Token})
}
