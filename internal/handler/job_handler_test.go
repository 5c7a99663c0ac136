package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/escola-backoffice/internal/models"
	"github.com/noah-isme/escola-backoffice/internal/service"
	"github.com/noah-isme/escola-backoffice/pkg/dates"
)

type jobRunnerStub struct {
	asOf    time.Time
	err     error
	created []models.Charge
	updated int
}

func (s *jobRunnerStub) GenerateCharges(ctx context.Context, asOf time.Time) (*service.ChargeGenerationResult, error) {
	s.asOf = asOf
	if s.err != nil {
		return nil, s.err
	}
	return &service.ChargeGenerationResult{AsOf: asOf, Contracts: 2, Created: s.created}, nil
}

func (s *jobRunnerStub) DetectAll(ctx context.Context, asOf time.Time) (*service.DetectionSummary, error) {
	s.asOf = asOf
	return &service.DetectionSummary{AsOf: asOf, Students: 4, Created: 1}, s.err
}

func (s *jobRunnerStub) MarkOverdue(ctx context.Context, today time.Time) (int, error) {
	s.asOf = today
	return s.updated, s.err
}

func TestJobHandlerGenerateChargesUsesDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stub := &jobRunnerStub{created: []models.Charge{{ID: "c1"}, {ID: "c2"}}}
	handler := NewJobHandler(stub, stub, stub)

	c, w := newGinContext(http.MethodPost, "/jobs/charges?date=2025-03-10", nil)
	handler.GenerateCharges(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dates.Date(2025, 3, 10), stub.asOf)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, float64(2), envelope.Meta["created"])
}

func TestJobHandlerDefaultsToToday(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stub := &jobRunnerStub{updated: 3}
	handler := NewJobHandler(stub, stub, stub)

	c, w := newGinContext(http.MethodPost, "/jobs/overdue", nil)
	handler.MarkOverdue(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dates.Day(time.Now()), stub.asOf)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, float64(3), envelope.Data["updated"])
}

func TestJobHandlerRejectsBadDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stub := &jobRunnerStub{}
	handler := NewJobHandler(stub, stub, stub)

	c, w := newGinContext(http.MethodPost, "/jobs/absences?date=10/03/2025", nil)
	handler.DetectAbsences(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, stub.asOf.IsZero())
}

func TestJobHandlerSurfacesFailures(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stub := &jobRunnerStub{err: errors.New("db down")}
	handler := NewJobHandler(stub, stub, stub)

	c, w := newGinContext(http.MethodPost, "/jobs/charges", nil)
	handler.GenerateCharges(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
