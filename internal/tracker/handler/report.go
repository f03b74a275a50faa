package handler

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/DeliveryRiskTracker/internal/tracker/service"
)

var reportHeader = []string{"Date", "Planned", "Completed", "Risk Score", "Risk Level"}

// writeReportCSV writes one row per timeline point.
func writeReportCSV(w io.Writer, tl *service.Timeline) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return err
	}
	for _, p := range tl.Points {
		row := []string{
			p.Snapshot.SnapshotDate,
			strconv.Itoa(p.Snapshot.PlannedTasks),
			strconv.Itoa(p.Snapshot.CompletedTasks),
			strconv.Itoa(p.Risk.Score),
			string(p.Risk.Level),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// serveReportCSV sends the timeline as a CSV attachment.
func serveReportCSV(c *gin.Context, tl *service.Timeline) error {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, tl.Project.ReportFilename()))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	return writeReportCSV(c.Writer, tl)
}
