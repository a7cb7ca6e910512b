// Package handler exposes attendance submission over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/handedalcali/qr-attendance/internal/attendance/service"
	"github.com/handedalcali/qr-attendance/internal/metrics"
)

// Handler serves check-in requests.
type Handler struct {
	service *service.Service
}

// New returns a Handler backed by the given attendance service.
func New(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

// markRequest accepts both the current field names and the older aliases
// still used by deployed scanner clients.
type markRequest struct {
	SessionID    string          `json:"sessionId"`
	SessionAlias string          `json:"session"`
	StudentID    string          `json:"studentId"`
	StudentAlias string          `json:"student"`
	Name         string          `json:"name"`
	DeviceID     string          `json:"deviceId"`
	QRPayload    json.RawMessage `json:"qrPayload"`
}

func (r *markRequest) sessionID() string {
	if r.SessionID != "" {
		return r.SessionID
	}
	return r.SessionAlias
}

func (r *markRequest) studentID() string {
	if r.StudentID != "" {
		return r.StudentID
	}
	return r.StudentAlias
}

// Mark handles POST /api/attend.
func (h *Handler) Mark(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.CheckIns.WithLabelValues("rejected_validation").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	meta := map[string]string{
		"ip": c.ClientIP(),
	}
	if ua := c.Request.UserAgent(); ua != "" {
		meta["ua"] = ua
	}
	if req.DeviceID != "" {
		meta["deviceId"] = req.DeviceID
	}

	payload := req.QRPayload
	if string(payload) == "null" {
		payload = nil
	}

	res, err := h.service.MarkAttendance(c.Request.Context(), service.Input{
		SessionID: req.sessionID(),
		QRPayload: payload,
		StudentID: req.studentID(),
		Name:      req.Name,
		DeviceID:  req.DeviceID,
		Meta:      meta,
	})
	if err != nil {
		status, outcome, msg := classify(err)
		metrics.CheckIns.WithLabelValues(outcome).Inc()
		c.JSON(status, gin.H{"error": msg})
		return
	}

	metrics.CheckIns.WithLabelValues(string(res.Status)).Inc()
	c.JSON(http.StatusOK, gin.H{
		"status":    res.Status,
		"sessionId": res.Record.SessionID,
		"studentId": res.Record.StudentID,
		"name":      res.Record.StudentName,
		"timestamp": res.Record.RecordedAt.UnixMilli(),
	})
}

func classify(err error) (status int, outcome, msg string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, "rejected_validation", err.Error()
	case errors.Is(err, service.ErrInvalidToken):
		return http.StatusBadRequest, "rejected_invalid", "invalid or tampered session token"
	case errors.Is(err, service.ErrSessionExpired):
		return http.StatusBadRequest, "rejected_expired", "session expired"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "rejected_not_found", "session not found"
	case errors.Is(err, service.ErrDeviceConflict):
		return http.StatusConflict, "rejected_device", "attendance already recorded from another device"
	case errors.Is(err, service.ErrDuplicate):
		return http.StatusConflict, "rejected_duplicate", "attendance already recorded"
	default:
		return http.StatusInternalServerError, "error", "internal error"
	}
}
