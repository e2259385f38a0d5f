package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"arise/internal/attendance"
	"arise/internal/export"
)

// ExportReport sends the course report up to the session as an xlsx attachment.
func (h *Handler) ExportReport(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	data, err := h.sessions.Report(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	m := attendance.BuildReport(data.Sessions, data.Students, data.PresentSet)

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, m); err != nil {
		h.fail(c, err)
		return
	}
	name := export.FileName(data.CourseName, h.now())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}
