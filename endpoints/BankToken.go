package endpoints

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.nhat.io/otelsql/attribute"

	"github.com/maptrack/bank-api/assert"
	"github.com/maptrack/bank-api/kernel"
)

// BankToken forces a token to exist for (user, bank) and returns it. The
// heavy lifting, including the cache hit path, lives in the token manager.
func BankToken(c *gin.Context) {
	rt := c.MustGet("rt").(*kernel.RequestRuntime)
	rt.StepInto("bank_token.handler")

	assert.NotNil(rt.User, "user != nil")

	dto := BankDto{Bank: c.Param("bank")}
	if err := dto.Validate(); err != nil {
		rt.E(http.StatusBadRequest, err)
		return
	}

	rt.Span.SetAttributes(attribute.KeyValue("bank.name", dto.Bank))

	token, err := rt.AppRuntime.BankService.Tokens.EnsureToken(rt.SpanContext, rt.User.ID, dto.Bank)
	if err != nil {
		rt.Fail(err)
		return
	}

	c.JSON(http.StatusOK, &gin.H{
		"access_token": token,
		"bank":         dto.Bank,
		"user_id":      rt.User.ID,
	})
	rt.EndBlock()
}
