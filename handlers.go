package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"homestock/models"
	"homestock/pkg/inventory"
	"homestock/pkg/ocr"
)

func setupRoutes(r *gin.Engine) {
	r.POST("/receipts", uploadReceiptHandler)
	r.GET("/receipts", listDraftsHandler)
	r.GET("/receipts/:token", getDraftHandler)
	r.POST("/receipts/:token/commit", commitDraftHandler)
	r.GET("/items", listItemsHandler)
}

// uploadReceiptHandler validates the upload, runs the OCR pipeline and
// persists the resulting review draft. Invalid uploads are rejected before
// the pipeline ever runs.
func uploadReceiptHandler(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	if file.Size > cfg.MaxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, cfg.MaxUploadBytes+1))
	_ = f.Close()
	if err != nil || int64(len(data)) > cfg.MaxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	if !mimeAllowed(data) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
		return
	}

	opts := &ocr.ProcessOptions{}
	if v := c.PostForm("preprocess"); v != "" {
		b := v == "1" || v == "true"
		opts.Preprocess = &b
	}
	if v := c.PostForm("min_confidence"); v != "" {
		if fv, err := strconv.ParseFloat(v, 64); err == nil {
			opts.MinItemConfidence = &fv
		}
	}

	rec, err := pipe.ProcessReceiptImage(c.Request.Context(), data, opts)
	if err != nil {
		switch {
		case errors.Is(err, ocr.ErrInvalidImage):
			c.JSON(http.StatusBadRequest, gin.H{"error": "corrupt or unsupported image"})
		case errors.Is(err, ocr.ErrTimeout):
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": "receipt processing timed out, try again"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not read this receipt, try a clearer photo"})
		}
		return
	}

	draft := ocr.ToDraft(rec)
	row, err := saveDraft(file.Filename, draft)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "draft save failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": row.Token, "draft": draft})
}

func mimeAllowed(data []byte) bool {
	mt := mimetype.Detect(data)
	for _, allowed := range cfg.MIMEAllowlist {
		if mt.Is(allowed) {
			return true
		}
	}
	return false
}

func saveDraft(fileName string, draft ocr.ReviewDraft) (*models.ReceiptDraft, error) {
	itemsJSON, err := json.Marshal(draft.Items)
	if err != nil {
		return nil, err
	}
	warnJSON, err := json.Marshal(draft.Warnings)
	if err != nil {
		return nil, err
	}
	row := models.ReceiptDraft{
		Token:             uuid.NewString(),
		FileName:          fileName,
		MerchantName:      draft.MerchantName,
		TransactionDate:   draft.TransactionDate,
		DateDefaulted:     draft.DateDefaulted,
		Subtotal:          draft.Subtotal,
		Tax:               draft.Tax,
		Total:             draft.Total,
		ItemsJSON:         string(itemsJSON),
		OverallConfidence: draft.OverallConfidence,
		RawText:           draft.RawText,
		WarningsJSON:      string(warnJSON),
		Status:            models.DraftPending,
	}
	if err := db.Create(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func draftFromRow(row *models.ReceiptDraft) ocr.ReviewDraft {
	d := ocr.ReviewDraft{
		MerchantName:      row.MerchantName,
		TransactionDate:   row.TransactionDate,
		DateDefaulted:     row.DateDefaulted,
		Subtotal:          row.Subtotal,
		Tax:               row.Tax,
		Total:             row.Total,
		OverallConfidence: row.OverallConfidence,
		RawText:           row.RawText,
	}
	_ = json.Unmarshal([]byte(row.ItemsJSON), &d.Items)
	_ = json.Unmarshal([]byte(row.WarningsJSON), &d.Warnings)
	return d
}

func listDraftsHandler(c *gin.Context) {
	var rows []models.ReceiptDraft
	if err := db.Order("id desc").Limit(100).Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, gin.H{
			"token":              rows[i].Token,
			"file_name":          rows[i].FileName,
			"merchant_name":      rows[i].MerchantName,
			"transaction_date":   rows[i].TransactionDate,
			"overall_confidence": rows[i].OverallConfidence,
			"status":             rows[i].Status,
			"created_at":         rows[i].CreatedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

func getDraftHandler(c *gin.Context) {
	var row models.ReceiptDraft
	if err := db.Where("token = ?", c.Param("token")).First(&row).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": row.Token, "status": row.Status, "draft": draftFromRow(&row)})
}

// commitDraftHandler maps confirmed draft items into inventory records.
// Partial failures are reported per item so the client can retry just the
// failed subset.
func commitDraftHandler(c *gin.Context) {
	var req struct {
		CategoryID uint            `json:"category_id" binding:"required"`
		LocationID uint            `json:"location_id" binding:"required"`
		Items      []ocr.DraftItem `json:"items"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var row models.ReceiptDraft
	if err := db.Where("token = ?", c.Param("token")).First(&row).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
		return
	}
	if row.Status == models.DraftCommitted {
		c.JSON(http.StatusConflict, gin.H{"error": "draft already committed"})
		return
	}

	draft := draftFromRow(&row)
	if req.Items != nil {
		// user-edited item set replaces the parsed one
		draft.Items = req.Items
		if itemsJSON, err := json.Marshal(req.Items); err == nil {
			row.ItemsJSON = string(itemsJSON)
		}
	}

	creator := &inventory.GormCreator{DB: db}
	target := inventory.Target{CategoryID: req.CategoryID, LocationID: req.LocationID}
	res, err := inventory.Commit(c.Request.Context(), creator, draft, target, &row.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "commit failed"})
		return
	}
	if len(res.Failed) == 0 {
		row.Status = models.DraftCommitted
	}
	if err := db.Save(&row).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "draft update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": res.Created, "failed": res.Failed, "status": row.Status})
}

func listItemsHandler(c *gin.Context) {
	var items []models.Item
	if err := db.Order("id desc").Limit(200).Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, items)
}
