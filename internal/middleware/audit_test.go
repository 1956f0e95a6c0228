package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/institute-cms-api/internal/models"
)

type auditRecorderSpy struct {
	logs []*models.AuditLog
}

func (s *auditRecorderSpy) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func TestAuditRecordsSuccessfulRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	spy := &auditRecorderSpy{}
	r := gin.New()
	r.GET("/export",
		func(c *gin.Context) {
			c.Set(ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
		},
		Audit(spy, models.AuditActionExportDownload, "events"),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/export", nil)
	req.Header.Set("User-Agent", "test-agent")
	r.ServeHTTP(w, req)

	require.Len(t, spy.logs, 1)
	entry := spy.logs[0]
	assert.Equal(t, models.AuditActionExportDownload, entry.Action)
	assert.Equal(t, "events", entry.Resource)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "admin-1", *entry.UserID)
	assert.Equal(t, "test-agent", entry.UserAgent)
}

func TestAuditSkipsFailedRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	spy := &auditRecorderSpy{}
	r := gin.New()
	r.GET("/export",
		Audit(spy, models.AuditActionExportDownload, "events"),
		func(c *gin.Context) { c.Status(http.StatusForbidden) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/export", nil)
	r.ServeHTTP(w, req)

	assert.Empty(t, spy.logs)
}
