package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edunexa/tuition-api/internal/middleware"
	"github.com/edunexa/tuition-api/internal/models"
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

func tuitionFromContext(c *gin.Context) string {
	value, exists := c.Get(middleware.ContextTuitionKey)
	if !exists {
		return ""
	}
	tuitionID, ok := value.(string)
	if !ok {
		return ""
	}
	return tuitionID
}

func boolQuery(c *gin.Context, name string) *bool {
	switch c.Query(name) {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	default:
		return nil
	}
}

func pageQuery(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	return page, size
}

func dateQuery(c *gin.Context, name string) *time.Time {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil
	}
	return &t
}
