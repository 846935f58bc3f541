package middleware

import (
	"net/http"

	"github.com/arstate/FAFA-BIMBEL/internal/response"
	"github.com/arstate/FAFA-BIMBEL/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RequireClassMember checks that the student joined the class named by the
// :classId route param. Admin tokens always pass.
func RequireClassMember(users *service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if claims.TokenType == service.TokenTypeAdmin {
			c.Next()
			return
		}

		joined, err := users.HasJoined(c.Request.Context(), claims.UserID, c.Param("classId"))
		if err != nil {
			log.Error().Err(err).Str("user_id", claims.UserID).Msg("Failed to check class membership")
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
		if !joined {
			response.AbortFail(c, http.StatusForbidden, response.ErrNotJoined)
			return
		}

		c.Next()
	}
}
