package controllers

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vnkhanh/companion-tutor-backend/services"
)

type PDFController struct {
	pdfs *services.PDFService
	log  *zap.Logger
}

func NewPDFController(pdfs *services.PDFService, log *zap.Logger) *PDFController {
	return &PDFController{pdfs: pdfs, log: log}
}

// readUpload đọc field "file"; đọc dư một byte để ValidatePDF bắt được file quá lớn
func readUpload(c *gin.Context) (services.PDFUpload, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "no file provided")
		return services.PDFUpload{}, false
	}
	data, err := readLimited(fh, services.MaxPDFSize+1)
	if err != nil {
		badRequest(c, "cannot read uploaded file")
		return services.PDFUpload{}, false
	}
	return services.PDFUpload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, true
}

func readLimited(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit))
}

// POST /api/extract-pdf-text
func (ctl *PDFController) ExtractText(c *gin.Context) {
	upload, ok := readUpload(c)
	if !ok {
		return
	}
	text, err := ctl.pdfs.Extract(upload)
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text, "length": len([]rune(text))})
}

// POST /api/companions/:id/pdf
func (ctl *PDFController) UploadCompanionPDF(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	upload, ok := readUpload(c)
	if !ok {
		return
	}
	companion, err := ctl.pdfs.Ingest(c.Request.Context(), currentUserID(c), id, upload)
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, companion)
}
