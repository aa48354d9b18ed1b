package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicAttributes tags the request's New Relic transaction, started by
// nrgin, with the caller and request id. It must run after Auth.
func NewRelicAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := nrgin.Transaction(c)
		if txn == nil {
			c.Next()
			return
		}

		p := Principal(c)
		txn.AddAttribute("user.id", p.Subject)
		txn.AddAttribute("user.role", string(p.Role))
		if rid := RequestID(c); rid != "" {
			txn.AddAttribute("request.id", rid)
		}

		c.Next()

		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
