// controllers/loan_controller.go
package controllers

import (
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"Gin_postgres_redis_radio_lending/app"
	"Gin_postgres_redis_radio_lending/db"
	"Gin_postgres_redis_radio_lending/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LoanController struct{ *Srv }

func NewLoanController(s *Srv) *LoanController { return &LoanController{Srv: s} }

// POST /api/devices/:id/borrow —— 借出
func (lc *LoanController) Borrow(c *gin.Context) {
	deviceID := c.Param("id")
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, app.H{"error": "missing device id"})
		return
	}

	var in struct {
		BorrowerName string `json:"borrowerName" binding:"required,max=100"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}

	loan, err := lc.Repo.BorrowDevice(c.Request.Context(), deviceID, in.BorrowerName)
	if err != nil {
		writeRepoError(c, err)
		return
	}

	actorID, actorName := actor(c)
	if _, err := lc.Repo.AppendAudit(c.Request.Context(), models.AuditBorrow, &loan.DeviceID, &loan.ID, actorID, actorName, &loan.BorrowerName); err != nil {
		lc.Log.Warn("audit append failed", zap.String("loan", loan.ID), zap.Error(err))
	}
	lc.Log.Info("device borrowed",
		zap.String("device", loan.DeviceID),
		zap.String("loan", loan.ID))
	c.JSON(http.StatusCreated, loan)
}

// POST /api/loans/:loanId/return —— 归还
func (lc *LoanController) Return(c *gin.Context) {
	loanID := c.Param("loanId")
	if loanID == "" {
		c.JSON(http.StatusBadRequest, app.H{"error": "missing loan id"})
		return
	}

	var in struct {
		ReturnNote *string `json:"returnNote" binding:"omitempty,max=500"`
	}
	// 空 body 合法（无备注归还）；坏 JSON 仍要拒
	if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}

	loan, err := lc.Repo.ReturnLoan(c.Request.Context(), loanID, in.ReturnNote)
	if err != nil {
		writeRepoError(c, err)
		return
	}

	actorID, actorName := actor(c)
	if _, err := lc.Repo.AppendAudit(c.Request.Context(), models.AuditReturn, &loan.DeviceID, &loan.ID, actorID, actorName, loan.ReturnNote); err != nil {
		lc.Log.Warn("audit append failed", zap.String("loan", loan.ID), zap.Error(err))
	}
	lc.Log.Info("device returned",
		zap.String("device", loan.DeviceID),
		zap.String("loan", loan.ID))
	c.JSON(http.StatusOK, loan)
}

// GET /api/loans —— 历史 ?deviceId=&borrower=&status=open|returned&page=&size=
func (lc *LoanController) ListLoans(c *gin.Context) {
	q := db.LoanQuery{
		DeviceID: c.Query("deviceId"),
		Borrower: c.Query("borrower"),
		Status:   c.Query("status"),
	}
	q.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	q.Size, _ = strconv.Atoi(c.DefaultQuery("size", "20"))

	res, err := lc.Repo.ListLoans(c.Request.Context(), q)
	if err != nil {
		writeRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/loans/export —— 历史导出 CSV
func (lc *LoanController) ExportCSV(c *gin.Context) {
	q := db.LoanQuery{
		DeviceID: c.Query("deviceId"),
		Borrower: c.Query("borrower"),
		Status:   c.Query("status"),
		Page:     1,
		Size:     200,
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="loans.csv"`)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"loan_id", "device_serial", "device_name", "borrower", "borrowed_at", "returned_at", "return_note"})

	// 分页翻完整个结果集；中途失败只能断连，头已经发出去了
	for {
		res, err := lc.Repo.ListLoans(c.Request.Context(), q)
		if err != nil {
			lc.Log.Error("csv export failed", zap.Error(err))
			c.Abort()
			return
		}
		for _, row := range res.Items {
			returnedAt := ""
			if row.ReturnedAt != nil {
				returnedAt = row.ReturnedAt.UTC().Format(time.RFC3339)
			}
			note := ""
			if row.ReturnNote != nil {
				note = *row.ReturnNote
			}
			_ = w.Write([]string{
				row.ID,
				row.DeviceSerial,
				row.DeviceName,
				row.BorrowerName,
				row.BorrowedAt.UTC().Format(time.RFC3339),
				returnedAt,
				note,
			})
		}
		if len(res.Items) < q.Size {
			break
		}
		q.Page++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		lc.Log.Error("csv write failed", zap.Error(err))
		c.Abort()
	}
}

// GET /api/audit —— 审计记录 ?deviceId=&page=&size=
func (lc *LoanController) ListAudit(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "50"))

	res, err := lc.Repo.ListAudit(c.Request.Context(), c.Query("deviceId"), page, size)
	if err != nil {
		writeRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
