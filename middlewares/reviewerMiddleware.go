package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/fiscal_review/config"
	"github.com/mmdatafocus/fiscal_review/utils"
)

// RequireReviewer rejects requests that reached a review route without a reviewer identity.
// With REQUIRE_REVIEWER_SESSION=false (local runs) the X-Reviewer-Id / X-Reviewer-Name
// headers are accepted instead.
func RequireReviewer() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := utils.GetReviewerIdFromContext(c.Request.Context()); ok && id != "" {
			c.Next()
			return
		}
		if !config.RequireReviewerSession() {
			if id := strings.TrimSpace(c.GetHeader("X-Reviewer-Id")); id != "" {
				ctx := utils.SetReviewerIdInContext(c.Request.Context(), id)
				ctx = utils.SetReviewerNameInContext(ctx, strings.TrimSpace(c.GetHeader("X-Reviewer-Name")))
				c.Request = c.Request.WithContext(ctx)
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
}
