package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"absensi/internal/absensi"
	"absensi/internal/master"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// todayResponse is a riwayat for a single resolved day.
type todayResponse struct {
	Tanggal string `json:"tanggal"`
	absensi.Riwayat
}

// riwayatQuery reads tanggal_start and tanggal_end; the service resolves
// defaults and validates the range.
func riwayatQuery(c *gin.Context, f master.SantriFilter) absensi.Query {
	return absensi.Query{Start: c.Query("tanggal_start"), End: c.Query("tanggal_end"), Filter: f}
}

func (h *Handler) riwayat(c *gin.Context, f master.SantriFilter) {
	r, err := h.svc.Riwayat(c.Request.Context(), riwayatQuery(c, f))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) today(c *gin.Context, f master.SantriFilter) {
	day, r, err := h.svc.Today(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, todayResponse{Tanggal: day, Riwayat: r})
}

// Riwayat: GET /absensi/riwayat?tanggal_start=&tanggal_end=&asrama_id=&gender=
func (h *Handler) Riwayat(c *gin.Context) {
	f, err := santriFilter(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.riwayat(c, f)
}

// RiwayatExport returns the same report as an Excel workbook.
func (h *Handler) RiwayatExport(c *gin.Context) {
	f, err := santriFilter(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	start, end, err := h.svc.Clock().Range(c.Query("tanggal_start"), c.Query("tanggal_end"))
	if err != nil {
		h.fail(c, err)
		return
	}
	r, err := h.svc.Riwayat(c.Request.Context(), absensi.Query{Start: start, End: end, Filter: f})
	if err != nil {
		h.fail(c, err)
		return
	}

	var buf bytes.Buffer
	if err := absensi.WriteXLSX(&buf, start, end, r); err != nil {
		h.fail(c, fmt.Errorf("export riwayat: %w", err))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="riwayat_%s_%s.xlsx"`, start, end))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
