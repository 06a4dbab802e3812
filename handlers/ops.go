package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/supplies_backend/config"
	"github.com/mmdatafocus/supplies_backend/models"
	"github.com/mmdatafocus/supplies_backend/workflow"
)

// kinds other documents may reserve; receiving numbers are issued by their own operations
var reservableNumberKinds = map[string]models.DocumentNumberKind{
	"invoice":   models.DocumentNumberInvoice,
	"order":     models.DocumentNumberOrder,
	"quotation": models.DocumentNumberQuotation,
}

func reserveDocumentNumber(c *gin.Context) {
	kind, ok := reservableNumberKinds[c.Param("kind")]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown document kind " + c.Param("kind")})
		return
	}
	number, err := models.ReserveDocumentNumber(c.Request.Context(), kind, "")
	if err != nil {
		respondError(c, "reserveDocumentNumber", err)
		return
	}
	respondOK(c, http.StatusCreated, gin.H{"kind": kind, "number": number})
}

func getReconciliation(c *gin.Context) {
	report, err := models.LatestReconciliationReport(c.Request.Context())
	if err != nil {
		respondError(c, "getReconciliation", err)
		return
	}
	respondOK(c, http.StatusOK, report)
}

// runReconciliation only reports; rewriting projections goes through rebuildProjections.
func runReconciliation(c *gin.Context) {
	report, err := workflow.ProcessReconciliationWorkflow(c.Request.Context(), config.GetLogger(), false)
	if err != nil {
		respondError(c, "runReconciliation", err)
		return
	}
	respondOK(c, http.StatusOK, report)
}

func rebuildProjections(c *gin.Context) {
	report, err := workflow.ProcessReconciliationWorkflow(c.Request.Context(), config.GetLogger(), true)
	if err != nil {
		respondError(c, "rebuildProjections", err)
		return
	}
	respondOK(c, http.StatusOK, report)
}

func listLedgerEvents(c *gin.Context) {
	events, err := models.ListLedgerEvents(c.Request.Context(), c.Query("publishStatus"))
	if err != nil {
		respondError(c, "listLedgerEvents", err)
		return
	}
	respondOK(c, http.StatusOK, events)
}

type outboxReplayInput struct {
	EventId int `json:"eventId" binding:"required,min=1"`
}

func replayLedgerEvent(c *gin.Context) {
	var input outboxReplayInput
	if !bindJSON(c, &input) {
		return
	}
	event, err := models.RequeueLedgerEvent(c.Request.Context(), input.EventId)
	if err != nil {
		respondError(c, "replayLedgerEvent", err)
		return
	}
	respondOK(c, http.StatusOK, event)
}
