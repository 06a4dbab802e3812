package handlers

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/supplies_backend/models"
	"github.com/xuri/excelize/v2"
)

const (
	exportSheet      = "Sheet1"
	spreadsheetMIME  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportTimeLayout = "2006-01-02 15:04"
)

// writeSheet lays out one header row followed by rows, starting at A1.
func writeSheet(headers []string, rows [][]any) (*excelize.File, error) {
	f := excelize.NewFile()
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return nil, err
		}
	}
	for r, row := range rows {
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(exportSheet, cell, v); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

func sendSheet(c *gin.Context, funcName string, filename string, f *excelize.File) {
	defer f.Close()
	c.Header("Content-Type", spreadsheetMIME)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	if err := f.Write(c.Writer); err != nil {
		respondError(c, funcName, err)
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(exportTimeLayout)
}

func exportWarehouseStocks(c *gin.Context) {
	stocks, err := models.ListWarehouseStocks(c.Request.Context(), c.Query("warehouse"), c.Query("productId"))
	if err != nil {
		respondError(c, "exportWarehouseStocks", err)
		return
	}
	rows := make([][]any, 0, len(stocks))
	for _, s := range stocks {
		rows = append(rows, []any{
			s.WarehouseName,
			s.ProductId,
			s.ProductName,
			s.AvailableStock.InexactFloat64(),
			s.TotalReceivedFromSupplier.InexactFloat64(),
			s.LastSupplier,
			formatTime(s.LastReceivedDate),
			string(s.Status),
		})
	}
	f, err := writeSheet([]string{"Warehouse", "ProductId", "ProductName", "AvailableStock", "TotalReceived", "LastSupplier", "LastReceivedDate", "Status"}, rows)
	if err != nil {
		respondError(c, "exportWarehouseStocks", err)
		return
	}
	sendSheet(c, "exportWarehouseStocks", "warehouse-stocks.xlsx", f)
}

func exportWasteEntries(c *gin.Context) {
	entries, err := models.ListWasteEntries(c.Request.Context(), models.AdjustmentType(c.Query("adjustmentType")))
	if err != nil {
		respondError(c, "exportWasteEntries", err)
		return
	}
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		date := e.Date
		rows = append(rows, []any{
			formatTime(&date),
			e.WarehouseName,
			e.ProductId,
			e.ProductName,
			e.Quantity.InexactFloat64(),
			string(e.Reason),
			string(e.AdjustmentType),
			e.GrnBatchId,
			e.SupplierName,
			e.Description,
		})
	}
	f, err := writeSheet([]string{"Date", "Warehouse", "ProductId", "ProductName", "Quantity", "Reason", "AdjustmentType", "GrnBatchId", "Supplier", "Description"}, rows)
	if err != nil {
		respondError(c, "exportWasteEntries", err)
		return
	}
	sendSheet(c, "exportWasteEntries", "waste-entries.xlsx", f)
}
