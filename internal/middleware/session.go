package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/archprep/mockportal-backend/internal/response"
	"github.com/archprep/mockportal-backend/internal/service"
)

// CheckSingleDeviceSession validates the JWT's device token against the
// active device session. A mismatch means another device logged in since
// this token was issued, so the request is rejected and the client logs out.
func CheckSingleDeviceSession(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		// Only enforce for student tokens.
		if claims.TokenType != service.TokenTypeStudent {
			c.Next()
			return
		}

		active, err := authService.VerifySession(c.Request.Context(), claims.UserID, claims.DeviceToken)
		if err != nil || !active {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			return
		}

		c.Next()
	}
}
