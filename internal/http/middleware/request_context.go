package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/fitprogram-backend/internal/platform/ctxutil"
)

// AttachRequestContext stores the :user_id route parameter on the request
// context so logs and spans downstream can reference it.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, err := uuid.Parse(c.Param("user_id")); err == nil {
			ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{UserID: id})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}
