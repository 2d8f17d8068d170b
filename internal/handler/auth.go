package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"absensi/internal/auth"
	"absensi/internal/master"
)

type loginResponse struct {
	auth.TokenPair
	ExpiresAt int64       `json:"expires_at"`
	Akun      master.Akun `json:"akun"`
}

func (h *Handler) respondTokens(c *gin.Context, akun master.Akun, tokens auth.TokenPair) {
	c.JSON(http.StatusOK, loginResponse{TokenPair: tokens, ExpiresAt: tokens.AccessExp.Unix(), Akun: akun})
}

func (h *Handler) login(c *gin.Context, role master.Role, username, secret string) {
	akun, tokens, err := h.auth.Login(c.Request.Context(), role, username, secret)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respondTokens(c, akun, tokens)
}

// LoginAdmin: POST /auth/admin/login {username, password}
func (h *Handler) LoginAdmin(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.login(c, master.RoleAdmin, req.Username, req.Password)
}

// LoginPengabsen: POST /auth/pengabsen/login {username, kode_akses}
func (h *Handler) LoginPengabsen(c *gin.Context) {
	var req struct {
		Username  string `json:"username" binding:"required"`
		KodeAkses string `json:"kode_akses" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.login(c, master.RolePengabsen, req.Username, req.KodeAkses)
}

// LoginWali: POST /auth/wali/login {no_hp, password}
func (h *Handler) LoginWali(c *gin.Context) {
	var req struct {
		NoHP     string `json:"no_hp" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.login(c, master.RoleWali, req.NoHP, req.Password)
}

// LoginPembimbing: POST /auth/pembimbing/login {username, password}
func (h *Handler) LoginPembimbing(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.login(c, master.RolePembimbing, req.Username, req.Password)
}

func (h *Handler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	akun, tokens, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respondTokens(c, akun, tokens)
}
