package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/edunexa/tuition-api/internal/models"
	appErrors "github.com/edunexa/tuition-api/pkg/errors"
	"github.com/edunexa/tuition-api/pkg/response"
)

// ContextTuitionKey is the gin context key storing the resolved tenant id.
const ContextTuitionKey = "currentTuition"

// Tenant resolves the caller's tuition from JWT claims and stores it on the
// context. Superadmins may act on another tenant via the X-Tuition-ID header;
// everyone else is pinned to the tenant embedded in their token.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		tuitionID := claims.TuitionID
		if override := c.GetHeader("X-Tuition-ID"); override != "" && override != tuitionID {
			if claims.Role != models.RoleSuperAdmin {
				response.Error(c, appErrors.ErrTenantMismatch)
				c.Abort()
				return
			}
			tuitionID = override
		}
		if tuitionID == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "no tuition scope"))
			c.Abort()
			return
		}

		c.Set(ContextTuitionKey, tuitionID)
		c.Next()
	}
}
