package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/escola-backoffice/internal/dto"
	"github.com/noah-isme/escola-backoffice/internal/models"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
)

type fakeDashboardSrv struct {
	resp       *dto.AdminDashboardResponse
	hit        bool
	err        error
	lastFilter models.DashboardFilter
	lastActor  models.Actor
}

func (f *fakeDashboardSrv) Admin(_ context.Context, actor models.Actor, filter models.DashboardFilter) (*dto.AdminDashboardResponse, bool, error) {
	f.lastActor = actor
	f.lastFilter = filter
	return f.resp, f.hit, f.err
}

type responseEnvelope struct {
	Data map[string]interface{} `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}

func TestDashboardHandlerAdminSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeDashboardSrv{resp: &dto.AdminDashboardResponse{Month: "2025-05", PendingAlerts: 3}, hit: true}
	handler := NewDashboardHandler(srv)

	c, w := newGinContext(http.MethodGet, "/dashboard?month=2025-05&classId=class-a&kind=tuition", nil)
	withClaims(c, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
	handler.Admin(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")
	assert.Equal(t, "2025-05", envelope.Data["month"])
	assert.Equal(t, float64(3), envelope.Data["pending_alerts"])

	assert.Equal(t, "class-a", srv.lastFilter.ClassID)
	assert.Equal(t, models.ChargeKindTuition, srv.lastFilter.Kind)
	assert.Equal(t, 5, int(srv.lastFilter.Month.Month()))
	assert.Equal(t, models.RoleAdmin, srv.lastActor.Role)
}

func TestDashboardHandlerDefaultsMonth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeDashboardSrv{resp: &dto.AdminDashboardResponse{}}
	handler := NewDashboardHandler(srv)

	c, w := newGinContext(http.MethodGet, "/dashboard", nil)
	withClaims(c, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
	handler.Admin(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, srv.lastFilter.Month.IsZero())
}

func TestDashboardHandlerInvalidMonth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{})

	c, w := newGinContext(http.MethodGet, "/dashboard?month=May", nil)
	withClaims(c, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
	handler.Admin(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDashboardHandlerPropagatesForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{err: appErrors.ErrForbidden})

	c, w := newGinContext(http.MethodGet, "/dashboard", nil)
	withClaims(c, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})
	handler.Admin(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
