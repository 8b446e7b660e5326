// routes/export_handlers.go
package routes

import (
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/LilVoxy/ministry_analytics/ETL/models"
	"github.com/LilVoxy/ministry_analytics/database"
	"github.com/LilVoxy/ministry_analytics/metrics"
)

var rawHeader = []string{"fact_id", "volunteer_id", "service_type_id", "service_date", "year", "quarter", "month", "source_row_id"}

var flowHeader = []string{"volunteer_name", "from_month", "to_month", "from_ministry", "to_ministry", "flow_intensity"}

func rawRecord(f database.RawFact) []string {
	return []string{
		f.FactID,
		f.VolunteerID,
		f.ServiceTypeID,
		f.ServiceDate.Format(models.DateLayout),
		strconv.Itoa(f.Year),
		strconv.Itoa(f.Quarter),
		strconv.Itoa(f.Month),
		f.SourceRowID,
	}
}

func flowRecord(t database.VolunteerTransition) []string {
	return []string{t.VolunteerID, t.FromMonth, t.ToMonth, t.FromMinistry, t.ToMinistry, strconv.Itoa(t.FlowIntensity)}
}

func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
}

// writeCSV streams header plus one record per row; an empty result gives the header only
func writeCSV[T any](w http.ResponseWriter, h *handlers, res metrics.Result[T], filename string, header []string, record func(T) []string) {
	if res.Status() == metrics.StatusFailed {
		http.Error(w, msgUnavailable, http.StatusInternalServerError)
		return
	}
	attachment(w, "text/csv; charset=utf-8", filename)
	cw := csv.NewWriter(w)
	cw.Write(header)
	for _, row := range res.Rows {
		cw.Write(record(row))
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Error("Failed to write %s: %v", filename, err)
	}
}

func (h *handlers) exportRawCSV(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	writeCSV(w, h, h.deps.Facade.RawData(r.Context(), f), "raw_data.csv", rawHeader, rawRecord)
}

func (h *handlers) exportFlowsCSV(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	writeCSV(w, h, h.deps.Facade.VolunteerFlowData(r.Context(), f), "volunteer_flows.csv", flowHeader, flowRecord)
}

// exportRawXLSX writes the raw facts into a single-sheet workbook
func (h *handlers) exportRawXLSX(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	res := h.deps.Facade.RawData(r.Context(), f)
	if res.Status() == metrics.StatusFailed {
		http.Error(w, msgUnavailable, http.StatusInternalServerError)
		return
	}

	book := excelize.NewFile()
	defer book.Close()
	const sheet = "Raw Data"
	if err := book.SetSheetName("Sheet1", sheet); err != nil {
		h.logger.Error("Failed to prepare workbook: %v", err)
		http.Error(w, msgUnavailable, http.StatusInternalServerError)
		return
	}

	header := make([]interface{}, len(rawHeader))
	for i, v := range rawHeader {
		header[i] = v
	}
	if err := book.SetSheetRow(sheet, "A1", &header); err != nil {
		h.logger.Error("Failed to write workbook header: %v", err)
		http.Error(w, msgUnavailable, http.StatusInternalServerError)
		return
	}
	for i, fact := range res.Rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{
			fact.FactID,
			fact.VolunteerID,
			fact.ServiceTypeID,
			fact.ServiceDate.Format(models.DateLayout),
			fact.Year,
			fact.Quarter,
			fact.Month,
			fact.SourceRowID,
		}
		if err := book.SetSheetRow(sheet, cell, &row); err != nil {
			h.logger.Error("Failed to write workbook row %d: %v", i+2, err)
			http.Error(w, msgUnavailable, http.StatusInternalServerError)
			return
		}
	}

	attachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "raw_data.xlsx")
	if err := book.Write(w); err != nil {
		h.logger.Error("Failed to stream workbook: %v", err)
	}
}
