package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/supplies_backend/middlewares"
)

func RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")

	api.GET("/purchase-orders", listPurchaseOrders)
	api.POST("/purchase-orders", createPurchaseOrder)
	api.GET("/purchase-orders/:number", getPurchaseOrder)

	api.GET("/inward-entries", listInwardEntries)
	api.POST("/inward-entries", createInwardEntry)
	api.GET("/inward-entries/:number", getInwardEntry)
	api.POST("/inward-entries/:number/grn", createGRNFromInward)

	api.GET("/grns", listGRNs)
	api.POST("/grns", postGoodsReceipt)
	api.GET("/grns/:number", getGRN)
	api.POST("/grns/:number/transfer", initiateTransfer)
	api.POST("/grns/:number/transfer/complete", completeTransfer)

	api.GET("/warehouse-stocks", listWarehouseStocks)
	api.GET("/warehouse-stocks/export", exportWarehouseStocks)
	api.GET("/warehouse-stocks/:warehouse/:productId", getWarehouseStock)

	api.GET("/customer-inventories", listCustomerInventories)
	api.GET("/customer-inventories/:customerId/:productId", getCustomerInventory)

	api.GET("/stock-movements", listStockMovements)

	api.GET("/waste-entries", listWasteEntries)
	api.POST("/waste-entries", recordWaste)
	api.GET("/waste-entries/export", exportWasteEntries)
	api.POST("/stock-adjustments", recordStockAdjustment)

	api.GET("/outward-entries", listOutwardEntries)
	api.POST("/outward-entries", issueOutward)
	api.GET("/outward-entries/:id", getOutwardEntry)
	api.POST("/outward-entries/:id/reverse", reverseOutward)
	api.POST("/outward-entries/:id/convert", convertSampleToSale)

	api.POST("/document-numbers/:kind", reserveDocumentNumber)

	api.GET("/reconciliation", getReconciliation)
	api.POST("/reconciliation", runReconciliation)

	api.GET("/ledger-events", listLedgerEvents)

	ops := router.Group("/internal/ops", middlewares.RequireSession())
	ops.POST("/outbox/replay", replayLedgerEvent)
	ops.POST("/reconciliation/rebuild", rebuildProjections)
}
