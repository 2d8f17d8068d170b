package absensi

import "absensi/internal/master"

// UnknownRecorder is shown when an event has no or an unresolvable recorder.
const UnknownRecorder = "-"

// Riwayat is the attendance report for a date range.
type Riwayat struct {
	Summary Summary                             `json:"summary"`
	Detail  map[Waktu]map[Status][]DetailRecord `json:"detail"`
}

// Summary tallies events per prayer time and status.
type Summary struct {
	TotalRecords int                      `json:"total_records"`
	ByWaktu      map[Waktu]map[Status]int `json:"by_waktu"`
}

// DetailRecord is an event enriched with student and recorder data.
type DetailRecord struct {
	SantriID      string `json:"santri_id"`
	Nama          string `json:"nama"`
	NIS           string `json:"nis"`
	AsramaID      string `json:"asrama_id"`
	Tanggal       string `json:"tanggal"`
	PengabsenID   string `json:"pengabsen_id"`
	PengabsenNama string `json:"pengabsen_nama"`
}

// NewRiwayat returns an empty report with every cell present.
func NewRiwayat() Riwayat {
	r := Riwayat{
		Summary: Summary{ByWaktu: make(map[Waktu]map[Status]int, len(AllWaktu))},
		Detail:  make(map[Waktu]map[Status][]DetailRecord, len(AllWaktu)),
	}
	for _, w := range AllWaktu {
		r.Summary.ByWaktu[w] = make(map[Status]int, len(AllStatus))
		r.Detail[w] = make(map[Status][]DetailRecord, len(AllStatus))
		for _, s := range AllStatus {
			r.Summary.ByWaktu[w][s] = 0
			r.Detail[w][s] = []DetailRecord{}
		}
	}
	return r
}

// BuildRiwayat joins events against the (already filtered) student set.
// TotalRecords counts every event passed in. Events with an unknown prayer
// time, unknown status or a student outside santri are skipped silently.
func BuildRiwayat(events []Event, santri []master.Santri, recorders []master.Recorder) Riwayat {
	r := NewRiwayat()
	r.Summary.TotalRecords = len(events)

	byID := make(map[string]master.Santri, len(santri))
	for _, s := range santri {
		byID[s.ID] = s
	}
	names := make(map[string]string, len(recorders))
	for _, rec := range recorders {
		names[rec.ID] = rec.Nama
	}

	for _, e := range events {
		if !e.Waktu.Valid() || !e.Status.Valid() {
			continue
		}
		s, ok := byID[e.SantriID]
		if !ok {
			continue
		}
		recName := UnknownRecorder
		if n, ok := names[e.PengabsenID]; ok && e.PengabsenID != "" {
			recName = n
		}
		r.Summary.ByWaktu[e.Waktu][e.Status]++
		r.Detail[e.Waktu][e.Status] = append(r.Detail[e.Waktu][e.Status], DetailRecord{
			SantriID:      s.ID,
			Nama:          s.Nama,
			NIS:           s.NIS,
			AsramaID:      s.AsramaID,
			Tanggal:       e.Tanggal,
			PengabsenID:   e.PengabsenID,
			PengabsenNama: recName,
		})
	}
	return r
}

// Counted returns the number of events that made it into the tally.
func (r Riwayat) Counted() int {
	n := 0
	for _, byStatus := range r.Summary.ByWaktu {
		for _, c := range byStatus {
			n += c
		}
	}
	return n
}
