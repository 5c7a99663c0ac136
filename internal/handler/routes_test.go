package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/escola-backoffice/internal/models"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
)

type tokenStub map[string]*models.JWTClaims

func (s tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrUnauthorized
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	tokens := tokenStub{
		"student": {UserID: "u-s1", Role: models.RoleStudent, StudentID: "s1"},
		"teacher": {UserID: "u-t1", Role: models.RoleTeacher, TeacherID: "t1"},
	}
	RegisterRoutes(router.Group("/api/v1"), tokens, Handlers{
		Auth:        &AuthHandler{},
		Users:       &UserHandler{},
		Students:    &StudentHandler{},
		Teachers:    &TeacherHandler{},
		Classes:     &ClassHandler{},
		Enrollments: &EnrollmentHandler{},
		Contracts:   &ContractHandler{},
		Charges:     &ChargeHandler{},
		Jobs:        &JobHandler{},
		Attendance:  &AttendanceHandler{},
		Alerts:      &AlertHandler{},
		Exams:       &ExamHandler{},
		Dashboard:   &DashboardHandler{},
		Reports:     &ReportHandler{},
		Metrics:     &MetricsHandler{},
	})
	return router
}

func TestRoutesGateByRole(t *testing.T) {
	router := newTestRouter()
	cases := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"no token", http.MethodGet, "/api/v1/students", "", http.StatusUnauthorized},
		{"unknown token", http.MethodGet, "/api/v1/students", "nope", http.StatusUnauthorized},
		{"student listing students", http.MethodGet, "/api/v1/students", "student", http.StatusForbidden},
		{"student on another record", http.MethodGet, "/api/v1/students/s2/attendance", "student", http.StatusForbidden},
		{"teacher running jobs", http.MethodPost, "/api/v1/jobs/charges", "teacher", http.StatusForbidden},
		{"teacher settling charges", http.MethodPost, "/api/v1/charges/c1/settle", "teacher", http.StatusForbidden},
		{"teacher syncing enrollments", http.MethodPost, "/api/v1/students/s1/enrollments/sync", "teacher", http.StatusForbidden},
		{"student grading", http.MethodPost, "/api/v1/exams/e1/grade", "student", http.StatusForbidden},
		{"dashboard without service", http.MethodGet, "/api/v1/dashboard", "teacher", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			router.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
