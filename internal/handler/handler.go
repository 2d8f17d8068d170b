package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"absensi/internal/absensi"
	"absensi/internal/auth"
	"absensi/internal/clock"
	"absensi/internal/cloudinary"
	"absensi/internal/master"
)

// PhotoUploader stores santri photos. *cloudinary.Client satisfies it.
type PhotoUploader interface {
	UploadBytes(ctx context.Context, data []byte, filename, publicID string) (*cloudinary.UploadResult, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) bool

type Handler struct {
	svc    *absensi.Service
	ref    master.Store
	auth   *auth.Authenticator
	photos PhotoUploader // nil if Cloudinary not configured
	health map[string]HealthCheck
	log    *zap.Logger
}

// Options carries the optional collaborators of a Handler.
type Options struct {
	Photos PhotoUploader
	Health map[string]HealthCheck
	Logger *zap.Logger
}

func New(svc *absensi.Service, ref master.Store, authn *auth.Authenticator, opts Options) *Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		svc:    svc,
		ref:    ref,
		auth:   authn,
		photos: opts.Photos,
		health: opts.Health,
		log:    log,
	}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	body := gin.H{"status": "ok"}
	status := http.StatusOK
	for name, check := range h.health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// ---------- Errors ----------

func statusFor(err error) int {
	switch {
	case errors.Is(err, clock.ErrInvalidDate),
		errors.Is(err, clock.ErrInvalidRange),
		errors.Is(err, absensi.ErrInvalidWaktu),
		errors.Is(err, absensi.ErrInvalidStatus),
		errors.Is(err, master.ErrInvalidGender),
		errors.Is(err, master.ErrInvalidRole):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrWrongKind):
		return http.StatusUnauthorized
	case errors.Is(err, absensi.ErrSantriNotFound),
		errors.Is(err, absensi.ErrEventNotFound),
		errors.Is(err, master.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, master.ErrDuplicate):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail writes err as {"error": msg}. Internal errors are logged and their
// message is not exposed.
func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// claims returns the caller's token claims. Bearer guarantees they exist on
// every route that uses it.
func claims(c *gin.Context) auth.Claims {
	cl, _ := auth.FromContext(c)
	return cl
}

// santriFilter reads asrama_id and gender query parameters.
func santriFilter(c *gin.Context) (master.SantriFilter, error) {
	gender, err := master.NormalizeGender(c.Query("gender"))
	if err != nil {
		return master.SantriFilter{}, err
	}
	return master.SantriFilter{AsramaID: c.Query("asrama_id"), Gender: gender}, nil
}
