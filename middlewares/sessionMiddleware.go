package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/fiscal_review/config"
	"github.com/mmdatafocus/fiscal_review/utils"
)

// ReviewerSession is what the auth service stores under Token:<token>.
type ReviewerSession struct {
	ReviewerId string `json:"reviewer_id"`
	Username   string `json:"username"`
	Name       string `json:"name"`
}

func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		var session ReviewerSession
		exists, err := config.GetRedisObject("Token:"+token, &session)
		if err != nil || !exists || session.ReviewerId == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetUsernameInContext(c.Request.Context(), session.Username)
		ctx = utils.SetReviewerIdInContext(ctx, session.ReviewerId)
		ctx = utils.SetReviewerNameInContext(ctx, session.Name)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
