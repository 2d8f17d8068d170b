package absensi_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"absensi/internal/absensi"
	"absensi/internal/clock"
	"absensi/internal/master"
	"absensi/internal/memstore"
	"absensi/internal/queue"
)

type fixture struct {
	store *memstore.Store
	svc   *absensi.Service
	q     *queue.InMemory
	cache *mapCache
	ahmad master.Santri
	siti  master.Santri
	wali  master.Akun
	peng  master.Akun
}

// 2025-01-01 20:00 UTC is already 2025-01-02 in WIB.
var lateUTC = time.Date(2025, 1, 1, 20, 0, 0, 0, time.UTC)

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()

	wali, err := st.UpsertAkun(ctx, master.Akun{Role: master.RoleWali, Nama: "Pak Ali", Username: "0811"})
	require.NoError(t, err)
	peng, err := st.UpsertAkun(ctx, master.Akun{Role: master.RolePengabsen, Nama: "Ustadz Hasan", Username: "hasan"})
	require.NoError(t, err)
	ahmad, err := st.CreateSantri(ctx, master.Santri{Nama: "Ahmad", NIS: "1001", AsramaID: "a1", Gender: "L", WaliID: wali.ID})
	require.NoError(t, err)
	siti, err := st.CreateSantri(ctx, master.Santri{Nama: "Siti", NIS: "2001", AsramaID: "a2", Gender: "P"})
	require.NoError(t, err)

	q := queue.NewInMemory(16)
	cache := newMapCache()
	resolver := clock.NewResolver(7).WithNow(func() time.Time { return lateUTC })
	svc := absensi.NewService(st, st, resolver, absensi.Options{Cache: cache, Publisher: q})
	return &fixture{store: st, svc: svc, q: q, cache: cache, ahmad: ahmad, siti: siti, wali: wali, peng: peng}
}

func TestService_Record_DefaultsToResolverToday(t *testing.T) {
	f := setup(t)

	evt, created, err := f.svc.Record(context.Background(), absensi.RecordInput{
		SantriID: f.ahmad.ID, Waktu: "subuh", Status: "hadir", PengabsenID: f.peng.ID,
	})

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "2025-01-02", evt.Tanggal)
	assert.Equal(t, absensi.Subuh, evt.Waktu)
	assert.Equal(t, absensi.Hadir, evt.Status)
}

func TestService_Record_IdempotentOnNaturalKey(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	in := absensi.RecordInput{SantriID: f.ahmad.ID, Tanggal: "2025-01-01", Waktu: "isya", Status: "hadir"}

	first, created, err := f.svc.Record(ctx, in)
	require.NoError(t, err)
	require.True(t, created)

	in.Status = "alfa"
	second, created, err := f.svc.Record(ctx, in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, absensi.Hadir, second.Status)
	assert.Equal(t, int64(1), f.cache.version)
}

func TestService_Record_ByNISFromQR(t *testing.T) {
	f := setup(t)

	evt, _, err := f.svc.Record(context.Background(), absensi.RecordInput{
		NIS: master.QRPayload(f.siti), Waktu: "ashar", Status: "haid",
	})

	require.NoError(t, err)
	assert.Equal(t, f.siti.ID, evt.SantriID)
}

func TestService_Record_Validation(t *testing.T) {
	f := setup(t)
	tests := []struct {
		name string
		in   absensi.RecordInput
		want error
	}{
		{name: "bad waktu", in: absensi.RecordInput{SantriID: f.ahmad.ID, Waktu: "dhuha", Status: "hadir"}, want: absensi.ErrInvalidWaktu},
		{name: "bad status", in: absensi.RecordInput{SantriID: f.ahmad.ID, Waktu: "subuh", Status: "telat"}, want: absensi.ErrInvalidStatus},
		{name: "bad date", in: absensi.RecordInput{SantriID: f.ahmad.ID, Waktu: "subuh", Status: "hadir", Tanggal: "01-01-2025"}, want: clock.ErrInvalidDate},
		{name: "unknown santri", in: absensi.RecordInput{SantriID: "nope", Waktu: "subuh", Status: "hadir"}, want: absensi.ErrSantriNotFound},
		{name: "no santri", in: absensi.RecordInput{Waktu: "subuh", Status: "hadir"}, want: absensi.ErrSantriNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.svc.Record(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestService_Record_PublishesOnlyNewEvents(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	in := absensi.RecordInput{SantriID: f.ahmad.ID, Waktu: "maghrib", Status: "izin"}

	evt, _, err := f.svc.Record(ctx, in)
	require.NoError(t, err)
	_, _, err = f.svc.Record(ctx, in)
	require.NoError(t, err)

	ch, err := f.q.Consume(ctx)
	require.NoError(t, err)
	msg := <-ch
	assert.Equal(t, queue.TypeAbsensiRecorded, msg.Type)
	var body absensi.Recorded
	require.NoError(t, msg.Decode(&body))
	assert.Equal(t, evt.ID, body.EventID)
	assert.Equal(t, absensi.Izin, body.Status)

	select {
	case extra := <-ch:
		t.Fatalf("duplicate submission published %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestService_Riwayat_Scenario(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, _, err := f.svc.Record(ctx, absensi.RecordInput{SantriID: f.ahmad.ID, Tanggal: "2025-01-01", Waktu: "subuh", Status: "hadir"})
	require.NoError(t, err)

	r, err := f.svc.Riwayat(ctx, absensi.Query{Start: "2025-01-01", End: "2025-01-01"})

	require.NoError(t, err)
	assert.Equal(t, 1, r.Summary.TotalRecords)
	assert.Equal(t, 1, r.Summary.ByWaktu[absensi.Subuh][absensi.Hadir])
	assert.Equal(t, 1, r.Counted())
}

func TestService_Riwayat_UnknownSantriStillCounted(t *testing.T) {
	f := setup(t)
	f.store.Seed(absensi.Event{Tanggal: "2025-01-01", Waktu: absensi.Subuh, Status: absensi.Hadir, SantriID: "deleted"})

	r, err := f.svc.Riwayat(context.Background(), absensi.Query{Start: "2025-01-01"})

	require.NoError(t, err)
	assert.Equal(t, 1, r.Summary.TotalRecords)
	assert.Equal(t, 0, r.Counted())
	assert.Empty(t, r.Detail[absensi.Subuh][absensi.Hadir])
}

func TestService_Riwayat_Filters(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	for _, s := range []master.Santri{f.ahmad, f.siti} {
		_, _, err := f.svc.Record(ctx, absensi.RecordInput{SantriID: s.ID, Tanggal: "2025-01-01", Waktu: "subuh", Status: "hadir"})
		require.NoError(t, err)
	}

	byAsrama, err := f.svc.Riwayat(ctx, absensi.Query{Start: "2025-01-01", Filter: master.SantriFilter{AsramaID: "a2"}})
	require.NoError(t, err)
	assert.Equal(t, 2, byAsrama.Summary.TotalRecords)
	require.Len(t, byAsrama.Detail[absensi.Subuh][absensi.Hadir], 1)
	assert.Equal(t, "Siti", byAsrama.Detail[absensi.Subuh][absensi.Hadir][0].Nama)

	byGender, err := f.svc.Riwayat(ctx, absensi.Query{Start: "2025-01-01", Filter: master.SantriFilter{Gender: "L"}})
	require.NoError(t, err)
	assert.Equal(t, 1, byGender.Summary.ByWaktu[absensi.Subuh][absensi.Hadir])

	byWali, err := f.svc.Riwayat(ctx, absensi.Query{Start: "2025-01-01", Filter: master.SantriFilter{WaliID: f.wali.ID}})
	require.NoError(t, err)
	assert.Equal(t, 1, byWali.Summary.TotalRecords, "wali scope loads only their children's events")
	assert.Equal(t, 1, byWali.Counted())

	none, err := f.svc.Riwayat(ctx, absensi.Query{Start: "2025-01-01", Filter: master.SantriFilter{WaliID: "childless"}})
	require.NoError(t, err)
	assert.Equal(t, 0, none.Summary.TotalRecords)
}

func TestService_Riwayat_InvalidRange(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Riwayat(context.Background(), absensi.Query{Start: "2025-02-01", End: "2025-01-01"})
	assert.ErrorIs(t, err, clock.ErrInvalidRange)
	_, err = f.svc.Riwayat(context.Background(), absensi.Query{Start: "kemarin"})
	assert.ErrorIs(t, err, clock.ErrInvalidDate)
}

func TestService_TodayRoundTrip(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// prime the cache for today before the write
	_, before, err := f.svc.Today(ctx, master.SantriFilter{})
	require.NoError(t, err)
	require.Equal(t, 0, before.Summary.TotalRecords)

	_, _, err = f.svc.Record(ctx, absensi.RecordInput{SantriID: f.ahmad.ID, Waktu: "subuh", Status: "hadir", PengabsenID: f.peng.ID})
	require.NoError(t, err)

	today := f.svc.Clock().Today()
	todayView := func(filter master.SantriFilter) func() (absensi.Riwayat, error) {
		return func() (absensi.Riwayat, error) {
			day, r, err := f.svc.Today(ctx, filter)
			assert.Equal(t, today, day)
			return r, err
		}
	}
	views := map[string]func() (absensi.Riwayat, error){
		"admin riwayat": func() (absensi.Riwayat, error) {
			return f.svc.Riwayat(ctx, absensi.Query{Start: today, End: today})
		},
		"pengabsen today":  todayView(master.SantriFilter{}),
		"pembimbing today": todayView(master.SantriFilter{AsramaID: f.ahmad.AsramaID}),
		"wali today":       todayView(master.SantriFilter{WaliID: f.wali.ID}),
	}
	for name, view := range views {
		t.Run(name, func(t *testing.T) {
			r, err := view()
			require.NoError(t, err)
			require.Len(t, r.Detail[absensi.Subuh][absensi.Hadir], 1)
			d := r.Detail[absensi.Subuh][absensi.Hadir][0]
			assert.Equal(t, today, d.Tanggal)
			assert.Equal(t, "Ustadz Hasan", d.PengabsenNama)
		})
	}
}

func TestService_Riwayat_CacheHit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Riwayat(ctx, absensi.Query{Start: "2025-01-01"})
	require.NoError(t, err)
	_, err = f.svc.Riwayat(ctx, absensi.Query{Start: "2025-01-01"})
	require.NoError(t, err)

	assert.Equal(t, 1, f.cache.sets)
	assert.Equal(t, 1, f.cache.hits)
}

func TestService_Riwayat_CacheErrorsAreNotFatal(t *testing.T) {
	st := memstore.New()
	svc := absensi.NewService(st, st, clock.NewResolver(7), absensi.Options{Cache: brokenCache{}})

	r, err := svc.Riwayat(context.Background(), absensi.Query{Start: "2025-01-01"})

	require.NoError(t, err)
	assert.Equal(t, 0, r.Summary.TotalRecords)
}

type mapCache struct {
	mu      sync.Mutex
	version int64
	data    map[string]absensi.Riwayat
	sets    int
	hits    int
}

func newMapCache() *mapCache { return &mapCache{data: map[string]absensi.Riwayat{}} }

func (c *mapCache) Version(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version, nil
}

func (c *mapCache) Bump(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
	return nil
}

func (c *mapCache) Get(_ context.Context, key string) (absensi.Riwayat, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.data[key]
	if ok {
		c.hits++
	}
	return r, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, r absensi.Riwayat) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[key] = r
	return nil
}

type brokenCache struct{}

var errRedisDown = errors.New("redis down")

func (brokenCache) Version(context.Context) (int64, error) { return 0, errRedisDown }
func (brokenCache) Bump(context.Context) error              { return errRedisDown }
func (brokenCache) Get(context.Context, string) (absensi.Riwayat, bool, error) {
	return absensi.Riwayat{}, false, errRedisDown
}
func (brokenCache) Set(context.Context, string, absensi.Riwayat) error { return errRedisDown }
