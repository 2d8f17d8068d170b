package handler

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"absensi/internal/auth"
	"absensi/internal/httpmiddleware"
	"absensi/internal/master"
)

// RouterConfig configures the middleware chain in front of the handlers.
type RouterConfig struct {
	Limiter      httpmiddleware.Limiter // nil disables rate limiting
	AllowOrigins []string
	Logger       *zap.Logger
}

// Router wires every endpoint onto a new gin engine.
func Router(h *Handler, cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.AccessLog(log, "/healthz", "/metrics"))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Disposition", httpmiddleware.RequestIDHeader},
	}))
	r.Use(httpmiddleware.SecurityHeaders())
	if cfg.Limiter != nil {
		r.Use(httpmiddleware.RateLimit(cfg.Limiter, log))
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)

	login := r.Group("/auth")
	{
		login.POST("/admin/login", h.LoginAdmin)
		login.POST("/pengabsen/login", h.LoginPengabsen)
		login.POST("/wali/login", h.LoginWali)
		login.POST("/pembimbing/login", h.LoginPembimbing)
		login.POST("/refresh", h.Refresh)
	}

	bearer := auth.Bearer(h.auth.Signer())
	admin := auth.RequireRole(string(master.RoleAdmin))

	riwayat := r.Group("/absensi", bearer, admin)
	{
		riwayat.GET("/riwayat", h.Riwayat)
		riwayat.GET("/riwayat/export", h.RiwayatExport)
	}

	adm := r.Group("/admin", bearer, admin)
	{
		adm.GET("/asrama", h.ListAsrama)
		adm.POST("/asrama", h.CreateAsrama)
		adm.GET("/santri", h.ListSantri)
		adm.POST("/santri", h.CreateSantri)
		adm.GET("/santri/:id/qr", h.SantriQR)
		adm.POST("/santri/:id/foto", h.UploadSantriFoto)
		adm.POST("/akun", h.CreateAkun)
	}

	peng := r.Group("/pengabsen", bearer, auth.RequireRole(string(master.RolePengabsen), string(master.RolePembimbing)))
	{
		peng.POST("/absensi", h.RecordAbsensi)
		peng.GET("/absensi/today", h.PengabsenToday)
		peng.GET("/santri", h.ListSantri)
		peng.GET("/santri/nis/:nis", h.SantriByNIS)
	}

	pemb := r.Group("/pembimbing", bearer, auth.RequireRole(string(master.RolePembimbing)))
	{
		pemb.GET("/absensi/today", h.PembimbingToday)
		pemb.GET("/absensi/riwayat", h.PembimbingRiwayat)
	}

	wali := r.Group("/wali", bearer, auth.RequireRole(string(master.RoleWali)))
	{
		wali.GET("/santri", h.WaliSantri)
		wali.GET("/absensi/today", h.WaliToday)
		wali.GET("/absensi/riwayat", h.WaliRiwayat)
		wali.POST("/devices", h.RegisterDevice)
	}

	return r
}
