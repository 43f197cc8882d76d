package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"medreserve/internal/booking"
	"medreserve/internal/script"
	"medreserve/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestRouter wires the handler against a fake script endpoint.
func newTestRouter(t *testing.T, upstream http.HandlerFunc) (*gin.Engine, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	client := script.New(srv.URL, 5*time.Second)
	svc := booking.NewService(client, nil)
	fetcher := booking.NewFetcher(client)
	fetcher.BaseDelay = time.Millisecond
	h := New(client, svc, fetcher, session.NewMemory())

	r := gin.New()
	r.GET("/api/proxy", h.ProxyGet)
	r.POST("/api/proxy", h.ProxyPost)
	r.POST("/api/login", h.Login)
	r.GET("/api/bookings", h.Bookings)
	r.GET("/api/dashboard", h.Dashboard)
	r.GET("/api/preferences/:clientID", h.GetPreferences)
	r.PUT("/api/preferences/:clientID", h.PutPreferences)
	return r, srv
}

func doRequest(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestProxyGet_RejectsUnknownAction(t *testing.T) {
	r, _ := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		t.Fatal("upstream must not be called")
	})

	rec := doRequest(r, httptest.NewRequest(http.MethodGet, "/api/proxy?action=dropTables", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid action", jsonBody(t, rec)["message"])
}

func TestProxyGet_RelaysUpstreamBodyVerbatim(t *testing.T) {
	const upstreamBody = `{"success":true,"bookings":[{"firstName":"สมชาย"}]}`
	r, _ := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, upstreamBody)
	})

	rec := doRequest(r, httptest.NewRequest(http.MethodGet, "/api/proxy?action=getBookings", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, upstreamBody, rec.Body.String())
}

func TestProxyGet_HTMLUpstreamBecomesMisconfigurationError(t *testing.T) {
	r, _ := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, "<!DOCTYPE html><html>Authorization needed</html>")
	})

	rec := doRequest(r, httptest.NewRequest(http.MethodGet, "/api/proxy?action=getBookings", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := jsonBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "returned HTML instead of JSON")
	assert.Contains(t, body["details"], "HTML")
}

func TestProxyPost_RejectsUnknownContentType(t *testing.T) {
	r, _ := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		t.Fatal("upstream must not be called")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/proxy", strings.NewReader("a=b"))
	req.Header.Set("Content-Type", "text/plain")
	rec := doRequest(r, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid content type", jsonBody(t, rec)["message"])
}

func TestProxyPost_LookupRequiresStudentID(t *testing.T) {
	r, _ := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		t.Fatal("upstream must not be called")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/proxy", strings.NewReader(`{"action":"lookupStudent"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := doRequest(r, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing studentId", jsonBody(t, rec)["message"])
}

func TestProxyPost_LookupRelaysUpstreamResult(t *testing.T) {
	r, _ := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, `{"success":true,"message":"found","prefix":"ด.ช."}`)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/proxy", strings.NewReader(`{"action":"lookupStudent","studentId":"12345"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := doRequest(r, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "found", jsonBody(t, rec)["message"])
}

func multipartForm(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		assert.NoError(t, w.WriteField(k, v))
	}
	assert.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func fullBookingFields() map[string]string {
	return map[string]string{
		"date":      "2025-03-15",
		"period":    "08:30-09:30",
		"studentId": "12345",
		"grade":     "ม.3/2",
		"prefix":    "ด.ช.",
		"firstName": "สมชาย",
		"lastName":  "ใจดี",
		"symptoms":  "ปวดหัว",
		"treatment": "ให้ยาพารา",
	}
}

func TestProxyPost_MultipartMissingFieldNamesIt(t *testing.T) {
	r, _ := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		t.Fatal("upstream must not be called")
	})

	fields := fullBookingFields()
	delete(fields, "date")
	buf, contentType := multipartForm(t, fields)
	req := httptest.NewRequest(http.MethodPost, "/api/proxy", buf)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(r, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required field: date", jsonBody(t, rec)["message"])
}

func TestProxyPost_MultipartWithoutImageForwardsPlaceholder(t *testing.T) {
	var forwarded map[string]string
	r, _ := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&forwarded))
		io.WriteString(w, `{"success":true,"message":"saved"}`)
	})

	buf, contentType := multipartForm(t, fullBookingFields())
	req := httptest.NewRequest(http.MethodPost, "/api/proxy", buf)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(r, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, booking.NoImage, forwarded["imageLink"])
	assert.Equal(t, "N/A", forwarded["email"])
	assert.Equal(t, "12345", forwarded["studentId"])
}

func TestProxyPost_MultipartImageWithoutStorageIs503(t *testing.T) {
	r, _ := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		t.Fatal("upstream must not be called")
	})

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fullBookingFields() {
		assert.NoError(t, w.WriteField(k, v))
	}
	part, err := w.CreateFormFile("image", "wound.jpg")
	assert.NoError(t, err)
	_, err = part.Write([]byte("jpegdata"))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/proxy", buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	rec := doRequest(r, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLogin_RequiresCredentials(t *testing.T) {
	r, _ := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		t.Fatal("upstream must not be called")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader("email=nurse@school.ac.th"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := doRequest(r, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_RelaysScriptVerdict(t *testing.T) {
	r, _ := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		assert.NoError(t, req.ParseForm())
		assert.Equal(t, "nurse@school.ac.th", req.PostForm.Get("email"))
		io.WriteString(w, `{"success":false,"message":"รหัสผ่านไม่ถูกต้อง"}`)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader("email=nurse@school.ac.th&password=wrong"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := doRequest(r, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, jsonBody(t, rec)["success"])
}

func TestBookings_ReturnsNormalizedRecords(t *testing.T) {
	r, _ := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, `{"success":true,"bookings":[
			{"firstName":"สมชาย","period":"08:30-09:30","symptome":"มีไข้"},
			{"firstName":"มาลี","คาบเรียนที่":"09:30-10:30","อาการ":"ปวดหัว"}
		]}`)
	})

	rec := doRequest(r, httptest.NewRequest(http.MethodGet, "/api/bookings", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success  bool                  `json:"success"`
		Total    int                   `json:"total"`
		Bookings []booking.VisitRecord `json:"bookings"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 2, body.Total)
	assert.Equal(t, "มีไข้", body.Bookings[0].Symptoms)
	assert.Equal(t, "09:30-10:30", body.Bookings[1].TimeSlot)
}

func TestBookings_SearchFiltersRecords(t *testing.T) {
	r, _ := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, `{"success":true,"bookings":[
			{"firstName":"สมชาย"},
			{"firstName":"มาลี"}
		]}`)
	})

	rec := doRequest(r, httptest.NewRequest(http.MethodGet, "/api/bookings?search=มาลี", nil))
	body := jsonBody(t, rec)
	assert.Equal(t, float64(1), body["total"])
}

func TestBookings_ExhaustedRetriesSurfaceThaiMessage(t *testing.T) {
	r, _ := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, "<!DOCTYPE html><html>deploy broken</html>")
	})

	rec := doRequest(r, httptest.NewRequest(http.MethodGet, "/api/bookings", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, jsonBody(t, rec)["message"], "รีเฟรช")
}

func TestDashboard_ComputesStats(t *testing.T) {
	r, _ := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, `{"success":true,"bookings":[
			{"firstName":"a","period":"08:30-09:30","symptoms":"มีไข้"},
			{"firstName":"b","period":"08:30-09:30","symptoms":"ปวดหัว"}
		]}`)
	})

	rec := doRequest(r, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool          `json:"success"`
		Stats   booking.Stats `json:"stats"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Stats.Total)
	assert.Equal(t, "คาบ 1", body.Stats.PeakTimeSlot)
}

func TestPreferences_RoundTrip(t *testing.T) {
	r, _ := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		t.Fatal("upstream must not be called")
	})

	rec := doRequest(r, httptest.NewRequest(http.MethodGet, "/api/preferences/client-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	prefs := jsonBody(t, rec)["preferences"].(map[string]any)
	assert.Equal(t, false, prefs["darkMode"])

	putReq := httptest.NewRequest(http.MethodPut, "/api/preferences/client-1",
		strings.NewReader(`{"darkMode":true,"userEmail":"nurse@school.ac.th"}`))
	putReq.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusOK, doRequest(r, putReq).Code)

	rec = doRequest(r, httptest.NewRequest(http.MethodGet, "/api/preferences/client-1", nil))
	prefs = jsonBody(t, rec)["preferences"].(map[string]any)
	assert.Equal(t, true, prefs["darkMode"])
	assert.Equal(t, "nurse@school.ac.th", prefs["userEmail"])
}
