package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/escola-backoffice/internal/middleware"
	"github.com/noah-isme/escola-backoffice/internal/models"
	"github.com/noah-isme/escola-backoffice/pkg/dates"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
	"github.com/noah-isme/escola-backoffice/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext resolves the caller and writes a 401 when the request carries no claims.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return claims.Actor(), true
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

// dateOrToday parses an optional YYYY-MM-DD value; an empty one means today.
func dateOrToday(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return dates.Day(time.Now()), nil
	}
	parsed, err := dates.Parse(raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	return parsed, nil
}

// monthOrCurrent parses an optional YYYY-MM value.
func monthOrCurrent(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return dates.MonthStart(time.Now()), nil
	}
	parsed, err := time.Parse("2006-01", raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid month format, expected YYYY-MM")
	}
	return dates.MonthStart(parsed), nil
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return models.NormalizePage(page, size)
}
