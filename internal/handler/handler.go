package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shrimpsizemoose/trekker/logger"

	"medreserve/internal/booking"
	"medreserve/internal/metrics"
	"medreserve/internal/script"
	"medreserve/internal/session"
)

// Handler binds the HTTP surface to the script client and the booking
// pipeline.
type Handler struct {
	script  *script.Client
	svc     *booking.Service
	fetcher *booking.Fetcher
	lookups *booking.LookupGuard
	prefs   session.Store
}

// New wires a handler.
func New(scriptClient *script.Client, svc *booking.Service, fetcher *booking.Fetcher, prefs session.Store) *Handler {
	return &Handler{
		script:  scriptClient,
		svc:     svc,
		fetcher: fetcher,
		lookups: booking.NewLookupGuard(scriptClient),
		prefs:   prefs,
	}
}

// ProxyGet forwards GET ?action=getBookings to the script.
func (h *Handler) ProxyGet(c *gin.Context) {
	action := c.Query("action")
	if action != "getBookings" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid action"})
		return
	}

	res, err := h.script.GetBookings(c.Request.Context())
	if err != nil {
		h.upstreamError(c, action, err)
		return
	}
	relay(c, action, res)
}

// ProxyPost handles both JSON bodies (student lookup, pre-uploaded booking
// payloads) and multipart form submissions with an optional image.
func (h *Handler) ProxyPost(c *gin.Context) {
	contentType := c.ContentType()
	switch {
	case strings.Contains(contentType, "application/json"):
		h.proxyJSON(c)
	case strings.Contains(contentType, "multipart/form-data"):
		h.proxyMultipart(c)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid content type"})
	}
}

func (h *Handler) proxyJSON(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Failed to read request body"})
		return
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid JSON body"})
		return
	}

	if action, _ := payload["action"].(string); action == "lookupStudent" {
		studentID, _ := payload["studentId"].(string)
		if studentID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing studentId"})
			return
		}
		res, err := h.lookups.Lookup(c.Request.Context(), studentID)
		if err != nil {
			h.upstreamError(c, "lookupStudent", err)
			return
		}
		relay(c, "lookupStudent", res)
		return
	}

	res, err := h.script.SubmitJSON(c.Request.Context(), payload)
	if err != nil {
		h.upstreamError(c, "forward", err)
		return
	}
	relay(c, "forward", res)
}

func (h *Handler) proxyMultipart(c *gin.Context) {
	sub := booking.Submission{
		Date:      c.PostForm("date"),
		Period:    c.PostForm("period"),
		StudentID: c.PostForm("studentId"),
		Grade:     c.PostForm("grade"),
		Prefix:    c.PostForm("prefix"),
		FirstName: c.PostForm("firstName"),
		LastName:  c.PostForm("lastName"),
		Symptoms:  c.PostForm("symptoms"),
		Treatment: c.PostForm("treatment"),
		Email:     c.PostForm("email"),
	}

	file, header, err := c.Request.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		data, rerr := io.ReadAll(io.LimitReader(file, booking.MaxImageSize+1))
		if rerr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to read image"})
			return
		}
		sub.Image = &booking.ImageUpload{
			Data:        data,
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
		}
	case errors.Is(err, http.ErrMissingFile):
		// no image attached
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid image field"})
		return
	}

	res, err := h.svc.Submit(c.Request.Context(), sub)
	if err != nil {
		var verr *booking.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": verr.Message})
		case errors.Is(err, booking.ErrStorageNotConfigured):
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "Image storage not configured"})
		default:
			h.upstreamError(c, "submit", err)
		}
		return
	}
	relay(c, "submit", res)
}

// Login forwards a plaintext credential pair to the script, which owns the
// actual check.
func (h *Handler) Login(c *gin.Context) {
	email := c.PostForm("email")
	password := c.PostForm("password")
	if email == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing email or password"})
		return
	}
	res, err := h.script.Login(c.Request.Context(), email, password)
	if err != nil {
		h.upstreamError(c, "login", err)
		return
	}
	relay(c, "login", res)
}

// Bookings serves the normalized, filtered, sorted record list that each page
// variant used to compute on its own.
func (h *Handler) Bookings(c *gin.Context) {
	records, err := h.fetcher.Fetch(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": booking.UserMessage(err)})
		return
	}

	filter := booking.Filter{
		Search:    c.Query("search"),
		TimeSlots: c.QueryArray("timeSlot"),
		Range:     booking.ParseRange(c.Query("range")),
		Sort:      booking.SortOrder(c.DefaultQuery("sort", "desc")),
	}
	filtered := booking.Apply(records, filter, time.Now())
	c.JSON(http.StatusOK, gin.H{"success": true, "bookings": filtered, "total": len(filtered)})
}

// Dashboard serves the chart aggregates.
func (h *Handler) Dashboard(c *gin.Context) {
	records, err := h.fetcher.Fetch(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": booking.UserMessage(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": booking.Compute(records, time.Now())})
}

// GetPreferences reads one client's shared settings.
func (h *Handler) GetPreferences(c *gin.Context) {
	prefs, err := h.prefs.Get(c.Request.Context(), c.Param("clientID"))
	if err != nil {
		logger.Error.Printf("preferences get failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to load preferences"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "preferences": prefs})
}

// PutPreferences writes through one client's shared settings.
func (h *Handler) PutPreferences(c *gin.Context) {
	var prefs session.Preferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid preferences body"})
		return
	}
	if err := h.prefs.Put(c.Request.Context(), c.Param("clientID"), prefs); err != nil {
		logger.Error.Printf("preferences put failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to save preferences"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// relay writes the upstream body verbatim, mirroring its status.
func relay(c *gin.Context, action string, res *script.Result) {
	metrics.ProxyRequestsTotal.WithLabelValues(action, strconv.Itoa(res.StatusCode)).Inc()
	if !res.Success {
		metrics.UpstreamErrorsTotal.WithLabelValues("logical").Inc()
	}
	c.Data(res.StatusCode, "application/json", res.Body)
}

// upstreamError converts script client failures into the structured
// {success:false} shape. HTML bodies get a distinct misconfiguration message.
func (h *Handler) upstreamError(c *gin.Context, action string, err error) {
	metrics.ProxyRequestsTotal.WithLabelValues(action, "error").Inc()
	switch {
	case errors.Is(err, script.ErrHTMLResponse):
		metrics.UpstreamErrorsTotal.WithLabelValues("html").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Google Apps Script returned HTML instead of JSON. Check the script deployment URL.",
			"details": err.Error(),
		})
	case errors.Is(err, script.ErrBadJSON):
		metrics.UpstreamErrorsTotal.WithLabelValues("badjson").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Invalid response format from Google Apps Script",
		})
	default:
		metrics.UpstreamErrorsTotal.WithLabelValues("network").Inc()
		logger.Error.Printf("%s: upstream call failed: %v", action, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Server error: " + err.Error(),
		})
	}
}
