package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/supplies_backend/models"
)

func createPurchaseOrder(c *gin.Context) {
	var input models.NewPurchaseOrder
	if !bindJSON(c, &input) {
		return
	}
	po, err := models.CreatePurchaseOrder(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "createPurchaseOrder", err)
		return
	}
	respondOK(c, http.StatusCreated, po)
}

func getPurchaseOrder(c *gin.Context) {
	po, err := models.GetPurchaseOrder(c.Request.Context(), c.Param("number"))
	if err != nil {
		respondError(c, "getPurchaseOrder", err)
		return
	}
	respondOK(c, http.StatusOK, po)
}

func listPurchaseOrders(c *gin.Context) {
	status := models.PurchaseOrderStatus(c.Query("status"))
	if status != "" && !status.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid status " + string(status)})
		return
	}
	pos, err := models.ListPurchaseOrders(c.Request.Context(), status)
	if err != nil {
		respondError(c, "listPurchaseOrders", err)
		return
	}
	respondOK(c, http.StatusOK, pos)
}

func createInwardEntry(c *gin.Context) {
	var input models.NewInwardEntry
	if !bindJSON(c, &input) {
		return
	}
	entry, err := models.CreateInwardEntry(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "createInwardEntry", err)
		return
	}
	respondOK(c, http.StatusCreated, entry)
}

func getInwardEntry(c *gin.Context) {
	entry, err := models.GetInwardEntry(c.Request.Context(), c.Param("number"))
	if err != nil {
		respondError(c, "getInwardEntry", err)
		return
	}
	respondOK(c, http.StatusOK, entry)
}

func listInwardEntries(c *gin.Context) {
	entries, err := models.ListInwardEntries(c.Request.Context(), models.InwardStatus(c.Query("status")))
	if err != nil {
		respondError(c, "listInwardEntries", err)
		return
	}
	respondOK(c, http.StatusOK, entries)
}

func createGRNFromInward(c *gin.Context) {
	var input models.NewGRNFromInward
	if !bindJSON(c, &input) {
		return
	}
	grn, err := models.CreateGRNFromInward(c.Request.Context(), c.Param("number"), &input)
	if err != nil {
		respondError(c, "createGRNFromInward", err)
		return
	}
	respondOK(c, http.StatusCreated, grn)
}

func postGoodsReceipt(c *gin.Context) {
	var input models.NewGoodsReceipt
	if !bindJSON(c, &input) {
		return
	}
	grn, err := models.PostGoodsReceipt(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "postGoodsReceipt", err)
		return
	}
	respondOK(c, http.StatusCreated, grn)
}

func getGRN(c *gin.Context) {
	grn, err := models.GetGRN(c.Request.Context(), c.Param("number"))
	if err != nil {
		respondError(c, "getGRN", err)
		return
	}
	respondOK(c, http.StatusOK, grn)
}

func listGRNs(c *gin.Context) {
	grns, err := models.ListGRNs(c.Request.Context(), c.Query("poNumber"), models.StockStatus(c.Query("status")))
	if err != nil {
		respondError(c, "listGRNs", err)
		return
	}
	respondOK(c, http.StatusOK, grns)
}

func initiateTransfer(c *gin.Context) {
	var input models.NewTransfer
	if !bindJSON(c, &input) {
		return
	}
	grn, err := models.InitiateTransfer(c.Request.Context(), c.Param("number"), &input)
	if err != nil {
		respondError(c, "initiateTransfer", err)
		return
	}
	respondOK(c, http.StatusOK, grn)
}

func completeTransfer(c *gin.Context) {
	grn, err := models.CompleteTransfer(c.Request.Context(), c.Param("number"))
	if err != nil {
		respondError(c, "completeTransfer", err)
		return
	}
	respondOK(c, http.StatusOK, grn)
}
