package endpoints

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.nhat.io/otelsql/attribute"

	"github.com/maptrack/bank-api/assert"
	"github.com/maptrack/bank-api/kernel"
)

// Accounts is the aggregation entry point: token, then consent, then the
// bank's account list. A consent still awaiting user approval at the bank
// is a 200 with a status payload, not an error.
func Accounts(c *gin.Context) {
	rt := c.MustGet("rt").(*kernel.RequestRuntime)
	rt.StepInto("accounts.handler")

	assert.NotNil(rt.User, "user != nil")

	dto := BankDto{Bank: c.Param("bank")}
	if err := dto.Validate(); err != nil {
		rt.E(http.StatusBadRequest, err)
		return
	}

	rt.Span.SetAttributes(attribute.KeyValue("bank.name", dto.Bank))

	res, err := rt.AppRuntime.BankService.GetAccounts(rt.SpanContext, rt.User.ID, dto.Bank)
	if err != nil {
		rt.Fail(err)
		return
	}

	if res.Pending {
		rt.Span.SetAttributes(attribute.KeyValue("bank.consent_status", res.Status))
		c.JSON(http.StatusOK, &gin.H{
			"message": "consent is pending approval at the bank",
			"bank":    dto.Bank,
			"status":  res.Status,
		})
		rt.EndBlock()
		return
	}

	c.Data(http.StatusOK, "application/json", res.Accounts)
	rt.EndBlock()
}
