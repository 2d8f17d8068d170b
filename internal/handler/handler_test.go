package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"absensi/internal/absensi"
	"absensi/internal/auth"
	"absensi/internal/clock"
	"absensi/internal/cloudinary"
	"absensi/internal/handler"
	"absensi/internal/master"
	"absensi/internal/memstore"
)

// 2025-01-01 20:00 UTC is 2025-01-02 in WIB.
var lateUTC = time.Date(2025, 1, 1, 20, 0, 0, 0, time.UTC)

type env struct {
	t      *testing.T
	router *gin.Engine
	store  *memstore.Store
	signer *auth.Signer
	ahmad  master.Santri
	siti   master.Santri
	admin  master.Akun
	peng   master.Akun
	wali   master.Akun
	pemb   master.Akun
}

type stubPhotos struct {
	err      error
	publicID string
}

func (s *stubPhotos) UploadBytes(_ context.Context, _ []byte, _ string, publicID string) (*cloudinary.UploadResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.publicID = publicID
	return &cloudinary.UploadResult{PublicID: publicID, SecureURL: "https://cdn/" + publicID + ".jpg"}, nil
}

func newEnv(t *testing.T, opts handler.Options) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	st := memstore.New()

	account := func(role master.Role, nama, username, secret, asrama string) master.Akun {
		hash, err := auth.HashSecret(secret)
		require.NoError(t, err)
		a, err := st.UpsertAkun(ctx, master.Akun{Role: role, Nama: nama, Username: username, SecretHash: hash, AsramaID: asrama})
		require.NoError(t, err)
		return a
	}
	e := &env{t: t, store: st}
	e.admin = account(master.RoleAdmin, "Admin", "admin", "rahasia", "")
	e.peng = account(master.RolePengabsen, "Ustadz Hasan", "hasan", "1234", "")
	e.wali = account(master.RoleWali, "Pak Ali", "0811", "walipass", "")
	e.pemb = account(master.RolePembimbing, "Ustadzah Aisyah", "aisyah", "pembpass", "a2")

	var err error
	e.ahmad, err = st.CreateSantri(ctx, master.Santri{Nama: "Ahmad", NIS: "1001", AsramaID: "a1", Gender: "L", WaliID: e.wali.ID})
	require.NoError(t, err)
	e.siti, err = st.CreateSantri(ctx, master.Santri{Nama: "Siti", NIS: "2001", AsramaID: "a2", Gender: "P"})
	require.NoError(t, err)

	resolver := clock.NewResolver(7).WithNow(func() time.Time { return lateUTC })
	svc := absensi.NewService(st, st, resolver, absensi.Options{})
	e.signer = auth.NewSigner("test-key", "absensi-test", time.Hour, 24*time.Hour)
	h := handler.New(svc, st, auth.NewAuthenticator(st, e.signer), opts)
	e.router = handler.Router(h, handler.RouterConfig{})
	return e
}

func (e *env) token(a master.Akun) string {
	pair, err := e.signer.Issue(a.ID, string(a.Role), a.Nama)
	require.NoError(e.t, err)
	return pair.AccessToken
}

func (e *env) do(method, path string, body any, as *master.Akun) *httptest.ResponseRecorder {
	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(*as))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type todayBody struct {
	Tanggal string `json:"tanggal"`
	absensi.Riwayat
}

func TestRecordAndRiwayat(t *testing.T) {
	e := newEnv(t, handler.Options{})

	rec := e.do(http.MethodPost, "/pengabsen/absensi", gin.H{"santri_id": e.ahmad.ID, "waktu_sholat": "subuh", "status": "hadir"}, &e.peng)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[struct {
		Absensi absensi.Event `json:"absensi"`
		Created bool          `json:"created"`
	}](t, rec)
	assert.True(t, first.Created)
	assert.Equal(t, "2025-01-02", first.Absensi.Tanggal)
	assert.Equal(t, e.peng.ID, first.Absensi.PengabsenID)

	rec = e.do(http.MethodPost, "/pengabsen/absensi", gin.H{"santri_id": e.ahmad.ID, "waktu_sholat": "subuh", "status": "alfa"}, &e.peng)
	assert.Equal(t, http.StatusOK, rec.Code, "duplicate submission returns the stored event")

	rec = e.do(http.MethodGet, "/absensi/riwayat?tanggal_start=2025-01-02", nil, &e.admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	r := decode[absensi.Riwayat](t, rec)
	assert.Equal(t, 1, r.Summary.TotalRecords)
	assert.Equal(t, 1, r.Summary.ByWaktu[absensi.Subuh][absensi.Hadir])
	assert.Len(t, r.Summary.ByWaktu, len(absensi.AllWaktu))
	for _, w := range absensi.AllWaktu {
		assert.Len(t, r.Summary.ByWaktu[w], len(absensi.AllStatus))
		assert.Len(t, r.Detail[w], len(absensi.AllStatus))
	}
	require.Len(t, r.Detail[absensi.Subuh][absensi.Hadir], 1)
	d := r.Detail[absensi.Subuh][absensi.Hadir][0]
	assert.Equal(t, "Ahmad", d.Nama)
	assert.Equal(t, "Ustadz Hasan", d.PengabsenNama)
	assert.NotNil(t, r.Detail[absensi.Isya][absensi.Izin], "empty cells are lists, not null")
}

func TestRecord_ByScannedQR(t *testing.T) {
	e := newEnv(t, handler.Options{})

	rec := e.do(http.MethodPost, "/pengabsen/absensi", gin.H{"nis": master.QRPayload(e.siti), "waktu_sholat": "ashar", "status": "haid"}, &e.pemb)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestRecord_Errors(t *testing.T) {
	e := newEnv(t, handler.Options{})
	tests := []struct {
		name string
		body gin.H
		want int
	}{
		{name: "bad waktu", body: gin.H{"santri_id": e.ahmad.ID, "waktu_sholat": "dhuha", "status": "hadir"}, want: http.StatusBadRequest},
		{name: "bad status", body: gin.H{"santri_id": e.ahmad.ID, "waktu_sholat": "subuh", "status": "telat"}, want: http.StatusBadRequest},
		{name: "bad tanggal", body: gin.H{"santri_id": e.ahmad.ID, "waktu_sholat": "subuh", "status": "hadir", "tanggal": "2/1/2025"}, want: http.StatusBadRequest},
		{name: "missing santri", body: gin.H{"waktu_sholat": "subuh", "status": "hadir"}, want: http.StatusBadRequest},
		{name: "unknown santri", body: gin.H{"santri_id": "nope", "waktu_sholat": "subuh", "status": "hadir"}, want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodPost, "/pengabsen/absensi", tt.body, &e.peng)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestRiwayat_BadQuery(t *testing.T) {
	e := newEnv(t, handler.Options{})
	for _, q := range []string{
		"tanggal_start=2025-02-01&tanggal_end=2025-01-01",
		"tanggal_start=kemarin",
		"gender=X",
	} {
		rec := e.do(http.MethodGet, "/absensi/riwayat?"+q, nil, &e.admin)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Contains(t, rec.Body.String(), `"error"`)
	}
}

func TestRoleGuards(t *testing.T) {
	e := newEnv(t, handler.Options{})
	tests := []struct {
		name string
		path string
		as   *master.Akun
		want int
	}{
		{name: "no token", path: "/absensi/riwayat", want: http.StatusUnauthorized},
		{name: "wali on admin report", path: "/absensi/riwayat", as: &e.wali, want: http.StatusForbidden},
		{name: "pengabsen on admin", path: "/admin/santri", as: &e.peng, want: http.StatusForbidden},
		{name: "admin on wali view", path: "/wali/absensi/today", as: &e.admin, want: http.StatusForbidden},
		{name: "pembimbing may use pengabsen views", path: "/pengabsen/santri", as: &e.pemb, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.do(http.MethodGet, tt.path, nil, tt.as).Code)
		})
	}
}

func TestLoginFlows(t *testing.T) {
	e := newEnv(t, handler.Options{})
	tests := []struct {
		path string
		body gin.H
		want int
	}{
		{path: "/auth/admin/login", body: gin.H{"username": "admin", "password": "rahasia"}, want: http.StatusOK},
		{path: "/auth/pengabsen/login", body: gin.H{"username": "hasan", "kode_akses": "1234"}, want: http.StatusOK},
		{path: "/auth/wali/login", body: gin.H{"no_hp": "0811", "password": "walipass"}, want: http.StatusOK},
		{path: "/auth/pembimbing/login", body: gin.H{"username": "aisyah", "password": "pembpass"}, want: http.StatusOK},
		{path: "/auth/pengabsen/login", body: gin.H{"username": "hasan", "kode_akses": "0000"}, want: http.StatusUnauthorized},
		{path: "/auth/admin/login", body: gin.H{"username": "hasan", "password": "1234"}, want: http.StatusUnauthorized},
		{path: "/auth/wali/login", body: gin.H{"no_hp": "0811"}, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := e.do(http.MethodPost, tt.path, tt.body, nil)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestRefresh(t *testing.T) {
	e := newEnv(t, handler.Options{})
	rec := e.do(http.MethodPost, "/auth/wali/login", gin.H{"no_hp": "0811", "password": "walipass"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tokens := decode[auth.TokenPair](t, rec)
	require.NotEmpty(t, tokens.RefreshToken)

	rec = e.do(http.MethodPost, "/auth/refresh", gin.H{"refresh_token": tokens.RefreshToken}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(http.MethodPost, "/auth/refresh", gin.H{"refresh_token": tokens.AccessToken}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "access tokens cannot refresh")
}

func TestTodayViews(t *testing.T) {
	e := newEnv(t, handler.Options{})
	for _, s := range []master.Santri{e.ahmad, e.siti} {
		rec := e.do(http.MethodPost, "/pengabsen/absensi", gin.H{"santri_id": s.ID, "waktu_sholat": "isya", "status": "hadir"}, &e.peng)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	tests := []struct {
		name    string
		path    string
		as      *master.Akun
		wantNis []string
	}{
		{name: "pengabsen", path: "/pengabsen/absensi/today", as: &e.peng, wantNis: []string{"1001", "2001"}},
		{name: "pengabsen by gender", path: "/pengabsen/absensi/today?gender=p", as: &e.peng, wantNis: []string{"2001"}},
		{name: "pembimbing", path: "/pembimbing/absensi/today", as: &e.pemb, wantNis: []string{"2001"}},
		{name: "wali", path: "/wali/absensi/today", as: &e.wali, wantNis: []string{"1001"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodGet, tt.path, nil, tt.as)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			body := decode[todayBody](t, rec)
			assert.Equal(t, "2025-01-02", body.Tanggal)
			var got []string
			for _, d := range body.Detail[absensi.Isya][absensi.Hadir] {
				got = append(got, d.NIS)
			}
			assert.ElementsMatch(t, tt.wantNis, got)
		})
	}
}

func TestPembimbingRiwayat_WithoutAsrama(t *testing.T) {
	e := newEnv(t, handler.Options{})
	orphan, err := e.store.UpsertAkun(context.Background(), master.Akun{Role: master.RolePembimbing, Nama: "X", Username: "x"})
	require.NoError(t, err)

	rec := e.do(http.MethodGet, "/pembimbing/absensi/riwayat", nil, &orphan)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWaliSantriAndDevices(t *testing.T) {
	e := newEnv(t, handler.Options{})

	rec := e.do(http.MethodGet, "/wali/santri", nil, &e.wali)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Santri []master.Santri `json:"santri"`
	}](t, rec)
	require.Len(t, body.Santri, 1)
	assert.Equal(t, e.ahmad.ID, body.Santri[0].ID)

	rec = e.do(http.MethodPost, "/wali/devices", gin.H{"token": "fcm-1"}, &e.wali)
	require.Equal(t, http.StatusCreated, rec.Code)
	devices, err := e.store.ListDevices(context.Background(), e.wali.ID)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "fcm-1", devices[0].Token)
}

func TestRiwayatExport(t *testing.T) {
	e := newEnv(t, handler.Options{})
	rec := e.do(http.MethodPost, "/pengabsen/absensi", gin.H{"santri_id": e.ahmad.ID, "waktu_sholat": "dzuhur", "status": "sakit"}, &e.peng)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(http.MethodGet, "/absensi/riwayat/export?tanggal_start=2025-01-02", nil, &e.admin)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "riwayat_2025-01-02_2025-01-02.xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")
}

func TestAdminMasterData(t *testing.T) {
	e := newEnv(t, handler.Options{})

	rec := e.do(http.MethodPost, "/admin/asrama", gin.H{"nama": "Al-Fatih", "gender": "l"}, &e.admin)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "L", decode[master.Asrama](t, rec).Gender)

	rec = e.do(http.MethodPost, "/admin/santri", gin.H{"nama": "Umar", "nis": "1001", "asrama_id": "a1", "gender": "L"}, &e.admin)
	assert.Equal(t, http.StatusConflict, rec.Code, "nis is unique")

	rec = e.do(http.MethodPost, "/admin/santri", gin.H{"nama": "Umar", "nis": "1002", "asrama_id": "a1", "gender": "W"}, &e.admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodGet, "/admin/santri?asrama_id=a1", nil, &e.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[struct {
		Santri []master.Santri `json:"santri"`
	}](t, rec).Santri, 1)

	rec = e.do(http.MethodPost, "/admin/akun", gin.H{"role": "pembimbing", "nama": "P", "username": "p", "password": "x"}, &e.admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "pembimbing needs an asrama")

	rec = e.do(http.MethodPost, "/admin/akun", gin.H{"role": "pengabsen", "nama": "Baru", "username": "baru", "password": "9999"}, &e.admin)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "9999")
	rec = e.do(http.MethodPost, "/auth/pengabsen/login", gin.H{"username": "baru", "kode_akses": "9999"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSantriQRAndLookup(t *testing.T) {
	e := newEnv(t, handler.Options{})

	rec := e.do(http.MethodGet, "/admin/santri/"+e.ahmad.ID+"/qr", nil, &e.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())

	rec = e.do(http.MethodGet, "/admin/santri/missing/qr", nil, &e.admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(http.MethodGet, "/pengabsen/santri/nis/1001", nil, &e.peng)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, e.ahmad.ID, decode[master.Santri](t, rec).ID)
}

func uploadFoto(e *env, santriID string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("foto", "ahmad.jpg")
	require.NoError(e.t, err)
	_, _ = part.Write([]byte("jpeg"))
	require.NoError(e.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/admin/santri/"+santriID+"/foto", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+e.token(e.admin))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestUploadSantriFoto(t *testing.T) {
	photos := &stubPhotos{}
	e := newEnv(t, handler.Options{Photos: photos})

	rec := uploadFoto(e, e.ahmad.ID)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, e.ahmad.ID, photos.publicID)
	got, err := e.store.GetSantri(context.Background(), e.ahmad.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/"+e.ahmad.ID+".jpg", got.FotoURL)
}

func TestUploadSantriFoto_Unavailable(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, uploadFoto(newEnv(t, handler.Options{}), "x").Code)

	e := newEnv(t, handler.Options{Photos: &stubPhotos{err: errors.New("boom")}})
	assert.Equal(t, http.StatusBadGateway, uploadFoto(e, e.ahmad.ID).Code)
}

func TestHealthz(t *testing.T) {
	e := newEnv(t, handler.Options{Health: map[string]handler.HealthCheck{
		"db":    func(context.Context) bool { return true },
		"redis": func(context.Context) bool { return false },
	}})

	rec := e.do(http.MethodGet, "/healthz", nil, nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["db"])
	assert.Equal(t, false, body["redis"])
}
