package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_engine/utils"
)

type authString string

// AuthMiddleware reads the bearer token issued by the auth service. Requests
// without a token pass through anonymous; RequireActor rejects them later.
// The admin role widens workbench access only; queries stay workbench scoped.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		if auth == "" {
			c.Next()
			return
		}

		bearer := "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.NewErrorResponse(utils.ErrorCodeUnauthorized, "invalid token format"))
			return
		}
		auth = strings.TrimSpace(auth[len(bearer):])

		validate, err := utils.JwtValidate(auth)
		if err != nil || !validate.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.NewErrorResponse(utils.ErrorCodeUnauthorized, "invalid token"))
			return
		}

		customClaim, ok := validate.Claims.(*utils.JwtCustomClaim)
		if !ok || customClaim.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.NewErrorResponse(utils.ErrorCodeUnauthorized, "invalid token claims"))
			return
		}

		ctx := context.WithValue(c.Request.Context(), authString("auth"), customClaim)
		ctx = utils.SetTokenInContext(ctx, auth)
		ctx = utils.SetActorIdInContext(ctx, customClaim.Subject)
		ctx = utils.SetActorNameInContext(ctx, customClaim.Name)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func CtxValue(ctx context.Context) *utils.JwtCustomClaim {
	raw, _ := ctx.Value(authString("auth")).(*utils.JwtCustomClaim)
	return raw
}

// RequireActor rejects anonymous requests.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CtxValue(c.Request.Context()) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.NewErrorResponse(utils.ErrorCodeUnauthorized, "authentication required"))
			return
		}
		c.Next()
	}
}

// RequireAdmin is for operator endpoints.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claim := CtxValue(c.Request.Context())
		if claim == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.NewErrorResponse(utils.ErrorCodeUnauthorized, "authentication required"))
			return
		}
		if claim.Role != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, utils.NewErrorResponse(utils.ErrorCodeForbidden, "admin only"))
			return
		}
		c.Next()
	}
}
