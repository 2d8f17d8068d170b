package absensi

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	sheetSummary = "Ringkasan"
	sheetDetail  = "Detail"
)

// WriteXLSX renders a report as a workbook: a waktu × status grid on the
// first sheet and every enriched record on the second.
func WriteXLSX(w io.Writer, start, end string, r Riwayat) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return err
	}
	if err := writeSummarySheet(f, start, end, r); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetDetail); err != nil {
		return err
	}
	if err := writeDetailSheet(f, r); err != nil {
		return fmt.Errorf("detail sheet: %w", err)
	}
	f.SetActiveSheet(0)

	_, err := f.WriteTo(w)
	return err
}

func writeSummarySheet(f *excelize.File, start, end string, r Riwayat) error {
	if err := f.SetSheetRow(sheetSummary, "A1", &[]any{"Periode", start, end}); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetSummary, "A2", &[]any{"Total data", r.Summary.TotalRecords}); err != nil {
		return err
	}

	header := []any{"Waktu"}
	for _, st := range AllStatus {
		header = append(header, string(st))
	}
	if err := f.SetSheetRow(sheetSummary, "A4", &header); err != nil {
		return err
	}
	for i, w := range AllWaktu {
		row := []any{string(w)}
		for _, st := range AllStatus {
			row = append(row, r.Summary.ByWaktu[w][st])
		}
		cell, err := excelize.CoordinatesToCellName(1, 5+i)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetSummary, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func writeDetailSheet(f *excelize.File, r Riwayat) error {
	header := []any{"Tanggal", "Waktu", "Status", "NIS", "Nama", "Asrama", "Pengabsen"}
	if err := f.SetSheetRow(sheetDetail, "A1", &header); err != nil {
		return err
	}
	line := 2
	for _, w := range AllWaktu {
		for _, st := range AllStatus {
			for _, d := range r.Detail[w][st] {
				cell, err := excelize.CoordinatesToCellName(1, line)
				if err != nil {
					return err
				}
				row := []any{d.Tanggal, string(w), string(st), d.NIS, d.Nama, d.AsramaID, d.PengabsenNama}
				if err := f.SetSheetRow(sheetDetail, cell, &row); err != nil {
					return err
				}
				line++
			}
		}
	}
	return nil
}
