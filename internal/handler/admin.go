package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"absensi/internal/auth"
	"absensi/internal/master"
)

const maxPhotoBytes = 5 << 20

// ---------- Asrama ----------

func (h *Handler) ListAsrama(c *gin.Context) {
	list, err := h.ref.ListAsrama(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if list == nil {
		list = []master.Asrama{}
	}
	c.JSON(http.StatusOK, gin.H{"asrama": list})
}

func (h *Handler) CreateAsrama(c *gin.Context) {
	var req struct {
		Nama   string `json:"nama" binding:"required"`
		Gender string `json:"gender" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	gender, err := master.NormalizeGender(req.Gender)
	if err != nil {
		h.fail(c, err)
		return
	}
	a, err := h.ref.CreateAsrama(c.Request.Context(), master.Asrama{Nama: req.Nama, Gender: gender})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// ---------- Santri ----------

// ListSantri: GET ?asrama_id=&gender=. Shared by admin and pengabsen.
func (h *Handler) ListSantri(c *gin.Context) {
	f, err := santriFilter(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	list, err := h.ref.ListSantri(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	if list == nil {
		list = []master.Santri{}
	}
	c.JSON(http.StatusOK, gin.H{"santri": list})
}

func (h *Handler) CreateSantri(c *gin.Context) {
	var req struct {
		Nama     string `json:"nama" binding:"required"`
		NIS      string `json:"nis" binding:"required"`
		AsramaID string `json:"asrama_id" binding:"required"`
		Gender   string `json:"gender" binding:"required"`
		WaliID   string `json:"wali_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	gender, err := master.NormalizeGender(req.Gender)
	if err != nil {
		h.fail(c, err)
		return
	}
	s, err := h.ref.CreateSantri(c.Request.Context(), master.Santri{
		Nama:     req.Nama,
		NIS:      req.NIS,
		AsramaID: req.AsramaID,
		Gender:   gender,
		WaliID:   req.WaliID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

// SantriQR returns the PNG QR card pengabsen scan to record attendance.
func (h *Handler) SantriQR(c *gin.Context) {
	s, err := h.ref.GetSantri(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	size := 256
	if v := c.Query("size"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 64 && parsed <= 1024 {
			size = parsed
		}
	}
	png, err := master.QRCode(s, size)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// UploadSantriFoto stores a multipart "foto" file and saves its URL on the santri.
func (h *Handler) UploadSantriFoto(c *gin.Context) {
	if h.photos == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured"})
		return
	}
	ctx := c.Request.Context()
	s, err := h.ref.GetSantri(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	file, header, err := c.Request.FormFile("foto")
	if err != nil {
		badRequest(c, "foto file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxPhotoBytes+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read foto"})
		return
	}
	if len(data) > maxPhotoBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "foto too large"})
		return
	}

	result, err := h.photos.UploadBytes(ctx, data, header.Filename, s.ID)
	if err != nil {
		h.log.Warn("foto upload failed", zap.String("santri_id", s.ID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed"})
		return
	}
	if err := h.ref.SetSantriFoto(ctx, s.ID, result.SecureURL); err != nil {
		h.fail(c, err)
		return
	}
	s.FotoURL = result.SecureURL
	c.JSON(http.StatusOK, s)
}

// ---------- Akun ----------

// CreateAkun creates or updates an account. For pengabsen the password is the
// access code; for wali the username is the phone number.
func (h *Handler) CreateAkun(c *gin.Context) {
	var req struct {
		Role     string `json:"role" binding:"required"`
		Nama     string `json:"nama" binding:"required"`
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
		AsramaID string `json:"asrama_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	role, err := master.ParseRole(req.Role)
	if err != nil {
		h.fail(c, err)
		return
	}
	if role == master.RolePembimbing && req.AsramaID == "" {
		badRequest(c, "pembimbing requires asrama_id")
		return
	}
	hash, err := auth.HashSecret(req.Password)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	a, err := h.ref.UpsertAkun(c.Request.Context(), master.Akun{
		Role:       role,
		Nama:       req.Nama,
		Username:   req.Username,
		SecretHash: hash,
		AsramaID:   req.AsramaID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}
