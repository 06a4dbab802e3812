package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/supplies_backend/models"
	"github.com/shopspring/decimal"
)

func listWarehouseStocks(c *gin.Context) {
	rows, err := models.ListWarehouseStocks(c.Request.Context(), c.Query("warehouse"), c.Query("productId"))
	if err != nil {
		respondError(c, "listWarehouseStocks", err)
		return
	}
	respondOK(c, http.StatusOK, rows)
}

func getWarehouseStock(c *gin.Context) {
	row, err := models.GetWarehouseStock(c.Request.Context(), c.Param("productId"), c.Param("warehouse"))
	if err != nil {
		respondError(c, "getWarehouseStock", err)
		return
	}
	respondOK(c, http.StatusOK, row)
}

func listCustomerInventories(c *gin.Context) {
	rows, err := models.ListCustomerInventories(c.Request.Context(), c.Query("customerId"))
	if err != nil {
		respondError(c, "listCustomerInventories", err)
		return
	}
	respondOK(c, http.StatusOK, rows)
}

func getCustomerInventory(c *gin.Context) {
	row, err := models.GetCustomerInventory(c.Request.Context(), c.Param("productId"), c.Param("customerId"))
	if err != nil {
		respondError(c, "getCustomerInventory", err)
		return
	}
	respondOK(c, http.StatusOK, row)
}

func listStockMovements(c *gin.Context) {
	ledger := models.MovementLedger(c.Query("ledger"))
	if ledger != "" && ledger != models.MovementLedgerWarehouse && ledger != models.MovementLedgerCustomer {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "ledger must be WAREHOUSE or CUSTOMER"})
		return
	}
	rows, err := models.ListStockMovements(c.Request.Context(), ledger, c.Query("productId"))
	if err != nil {
		respondError(c, "listStockMovements", err)
		return
	}
	respondOK(c, http.StatusOK, rows)
}

func recordWaste(c *gin.Context) {
	var input models.NewWasteEntry
	if !bindJSON(c, &input) {
		return
	}
	entry, err := models.RecordWaste(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "recordWaste", err)
		return
	}
	respondOK(c, http.StatusCreated, entry)
}

func recordStockAdjustment(c *gin.Context) {
	var input models.NewStockAdjustment
	if !bindJSON(c, &input) {
		return
	}
	entry, err := models.RecordPostGRNAdjustment(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "recordStockAdjustment", err)
		return
	}
	respondOK(c, http.StatusCreated, entry)
}

func listWasteEntries(c *gin.Context) {
	entries, err := models.ListWasteEntries(c.Request.Context(), models.AdjustmentType(c.Query("adjustmentType")))
	if err != nil {
		respondError(c, "listWasteEntries", err)
		return
	}
	respondOK(c, http.StatusOK, entries)
}

func issueOutward(c *gin.Context) {
	var input models.NewOutwardEntry
	if !bindJSON(c, &input) {
		return
	}
	entry, err := models.IssueOutward(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "issueOutward", err)
		return
	}
	respondOK(c, http.StatusCreated, entry)
}

func getOutwardEntry(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	entry, err := models.GetOutwardEntry(c.Request.Context(), id)
	if err != nil {
		respondError(c, "getOutwardEntry", err)
		return
	}
	respondOK(c, http.StatusOK, entry)
}

func listOutwardEntries(c *gin.Context) {
	entries, err := models.ListOutwardEntries(c.Request.Context(), c.Query("customerId"))
	if err != nil {
		respondError(c, "listOutwardEntries", err)
		return
	}
	respondOK(c, http.StatusOK, entries)
}

func reverseOutward(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	entry, err := models.ReverseOutward(c.Request.Context(), id)
	if err != nil {
		respondError(c, "reverseOutward", err)
		return
	}
	respondOK(c, http.StatusOK, entry)
}

type convertToSaleInput struct {
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

func convertSampleToSale(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	var input convertToSaleInput
	if !bindJSON(c, &input) {
		return
	}
	entry, err := models.ConvertSampleToSale(c.Request.Context(), id, input.UnitPrice)
	if err != nil {
		respondError(c, "convertSampleToSale", err)
		return
	}
	respondOK(c, http.StatusOK, entry)
}
