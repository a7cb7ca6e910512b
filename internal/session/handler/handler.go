// Package handler exposes session lifecycle and live roster endpoints over HTTP.
package handler

import (
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/handedalcali/qr-attendance/internal/metrics"
	"github.com/handedalcali/qr-attendance/internal/session/domain"
	"github.com/handedalcali/qr-attendance/internal/session/service"
)

// Handler serves session management requests.
type Handler struct {
	service  *service.Service
	upgrader websocket.Upgrader
}

// New returns a Handler backed by the given lifecycle service. allowedOrigins
// gates websocket upgrades; localhost is always accepted.
func New(svc *service.Service, allowedOrigins []string) *Handler {
	return &Handler{
		service: svc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(r.Header.Get("Origin"), allowedOrigins)
			},
		},
	}
}

func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" || host == "127.0.0.1" {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSuffix(a, "/"), strings.TrimSuffix(origin, "/")) {
			return true
		}
	}
	return false
}

type createRequest struct {
	Duration   string `json:"duration"`
	CreatedBy  string `json:"createdBy"`
	CourseName string `json:"courseName"`
}

// Create handles POST /api/sessions.
func (h *Handler) Create(c *gin.Context) {
	// An empty body is fine; every field has a default.
	var req createRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	var duration time.Duration
	if req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duration"})
			return
		}
		duration = d
	}

	res, err := h.service.CreateSession(c.Request.Context(), duration, req.CreatedBy, req.CourseName)
	if err != nil {
		log.Printf("create session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	metrics.SessionsCreated.Inc()
	c.JSON(http.StatusOK, gin.H{
		"sessionId": res.Session.ID,
		"expiresAt": res.Session.ExpiresAt.UnixMilli(),
		"token":     res.Token,
		"qrText":    res.QRText,
	})
}

// Students handles GET /api/sessions/:sessionId/students.
func (h *Handler) Students(c *gin.Context) {
	sess, err := h.service.GetSession(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		h.writeError(c, err, "get session")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionId": sess.ID,
		"expiresAt": sess.ExpiresAt.UnixMilli(),
		"students":  rosterJSON(sess.Roster),
	})
}

type renewRequest struct {
	Duration string `json:"duration"`
}

// Regenerate handles POST /api/sessions/:sessionId/regenerate.
func (h *Handler) Regenerate(c *gin.Context) {
	var req renewRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	var duration time.Duration
	if req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duration"})
			return
		}
		duration = d
	}

	res, err := h.service.RenewToken(c.Request.Context(), c.Param("sessionId"), duration)
	if err != nil {
		h.writeError(c, err, "renew token")
		return
	}

	metrics.TokensRenewed.Inc()
	c.JSON(http.StatusOK, gin.H{
		"sessionId": c.Param("sessionId"),
		"expiresAt": res.ExpiresAt.UnixMilli(),
		"token":     res.Token,
		"qrText":    res.QRText,
	})
}

// Clear handles POST /api/sessions/:sessionId/clear.
func (h *Handler) Clear(c *gin.Context) {
	if err := h.service.ClearAttendance(c.Request.Context(), c.Param("sessionId")); err != nil {
		h.writeError(c, err, "clear attendance")
		return
	}
	metrics.SessionsCleared.Inc()
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

// Export handles GET /api/sessions/:sessionId/export. It returns the full
// ledger ordered by check-in time, the authoritative attendance list.
func (h *Handler) Export(c *gin.Context) {
	records, err := h.service.Export(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		h.writeError(c, err, "export")
		return
	}

	out := make([]gin.H, 0, len(records))
	for _, rec := range records {
		out = append(out, gin.H{
			"studentId": rec.StudentID,
			"name":      rec.StudentName,
			"deviceId":  rec.DeviceID,
			"timestamp": rec.RecordedAt.UnixMilli(),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionId": c.Param("sessionId"),
		"count":     len(out),
		"records":   out,
	})
}

// livePushInterval is how often the live roster socket re-checks for changes.
const livePushInterval = 2 * time.Second

// Live handles GET /api/sessions/:sessionId/live. It upgrades to a
// websocket and pushes the roster whenever it changes, until the client
// disconnects or the session disappears.
func (h *Handler) Live(c *gin.Context) {
	sessionID := c.Param("sessionId")
	if _, err := h.service.GetSession(c.Request.Context(), sessionID); err != nil {
		h.writeError(c, err, "live roster")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	// Reads are discarded; they only surface client disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(livePushInterval)
	defer ticker.Stop()

	var lastCount = -1
	for {
		sess, err := h.service.GetSession(c.Request.Context(), sessionID)
		if err != nil {
			_ = conn.WriteJSON(gin.H{"error": "session gone"})
			return
		}
		if len(sess.Roster) != lastCount {
			lastCount = len(sess.Roster)
			if err := conn.WriteJSON(gin.H{
				"sessionId": sess.ID,
				"expiresAt": sess.ExpiresAt.UnixMilli(),
				"students":  rosterJSON(sess.Roster),
			}); err != nil {
				return
			}
		}
		select {
		case <-ticker.C:
		case <-c.Request.Context().Done():
			return
		}
	}
}

func rosterJSON(roster []domain.RosterEntry) []gin.H {
	out := make([]gin.H, 0, len(roster))
	for _, e := range roster {
		out = append(out, gin.H{
			"id":        e.StudentID,
			"name":      e.StudentName,
			"timestamp": e.CheckedInAt.UnixMilli(),
		})
	}
	return out
}

func (h *Handler) writeError(c *gin.Context, err error, op string) {
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	log.Printf("%s: %v", op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
