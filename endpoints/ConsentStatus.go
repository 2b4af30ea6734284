package endpoints

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.nhat.io/otelsql/attribute"

	"github.com/maptrack/bank-api/assert"
	"github.com/maptrack/bank-api/kernel"
)

// ConsentStatus relays the bank's view of a consent verbatim, so the
// frontend can show the user exactly what the bank reports.
func ConsentStatus(c *gin.Context) {
	rt := c.MustGet("rt").(*kernel.RequestRuntime)
	rt.StepInto("consent_status.handler")

	assert.NotNil(rt.User, "user != nil")

	dto := ConsentDto{
		Bank:      c.Param("bank"),
		ConsentId: c.Param("consent_id"),
	}
	if err := dto.Validate(); err != nil {
		rt.E(http.StatusBadRequest, err)
		return
	}

	rt.Span.SetAttributes(
		attribute.KeyValue("bank.name", dto.Bank),
		attribute.KeyValue("bank.consent_id", dto.ConsentId),
	)

	body, err := rt.AppRuntime.BankService.ConsentStatus(rt.SpanContext, rt.User.ID, dto.Bank, dto.ConsentId)
	if err != nil {
		rt.Fail(err)
		return
	}

	c.Data(http.StatusOK, "application/json", body)
	rt.EndBlock()
}
