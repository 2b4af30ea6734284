package middleware

import (
	jwt "github.com/appleboy/gin-jwt/v2"
	"github.com/gin-gonic/gin"

	"github.com/maptrack/bank-api/kernel"
	"github.com/maptrack/bank-api/models"
)

// UserMiddleware resolves the JWT subject (verified by the gin-jwt
// middleware running before it) to a user row and attaches it to the
// request runtime. Identity issuance itself lives in the external auth
// service; this API only consumes the token.
func UserMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rt := c.MustGet("rt").(*kernel.RequestRuntime)

		rt.StepInto("middleware.user")

		claims := jwt.ExtractClaims(c)
		email, ok := claims["sub"].(string)
		if !ok || email == "" {
			rt.Ef(401, "unauthorized: token carries no subject")
			return
		}

		user := models.User{}
		found, err := rt.First(&user, "email = ?", email)
		if err != nil {
			rt.Ef(500, "failed to authorize user: could not query database: %s", err)
			return
		}
		if !found {
			rt.Ef(404, "user not found")
			return
		}

		if user.IsBlocked {
			rt.Ef(403, "user is blocked")
			return
		}

		rt.User = &user

		rt.StepBack()
		c.Next()
	}
}
