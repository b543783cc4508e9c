package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/authgrid/backend/internal/token"
)

// RegisterRoutes mounts the full API surface on the engine.
func RegisterRoutes(r *gin.Engine, auth *AuthHandler, svcAuth *ServiceAuthHandler, rbac *RBACHandler, checker PermissionChecker, issuer *token.Issuer) {
	r.GET("/", Root)
	r.GET("/ping", Ping)

	v1 := r.Group("/api/v1")

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/signup", auth.Signup)
		authGroup.POST("/verify-email", auth.VerifyEmail)
		authGroup.POST("/resend-verification", auth.ResendVerification)
		authGroup.POST("/signin", auth.Signin)
		authGroup.POST("/refresh", auth.Refresh)
		authGroup.POST("/signout", auth.Signout)

		protected := authGroup.Group("")
		protected.Use(AuthMiddleware(issuer))
		protected.POST("/signout-all", auth.SignoutAll)
		protected.GET("/me", auth.Me)
	}

	svcGroup := v1.Group("/service")
	{
		svcGroup.POST("/token", svcAuth.Token)

		protected := svcGroup.Group("")
		protected.Use(AuthMiddleware(issuer))
		protected.POST("/register", RequirePermission(checker, "system.settings"), svcAuth.Register)
	}

	usersGroup := v1.Group("/users")
	usersGroup.Use(AuthMiddleware(issuer))
	usersGroup.POST("/:id/roles", RequirePermission(checker, "user.update"), rbac.AssignRole)
}
