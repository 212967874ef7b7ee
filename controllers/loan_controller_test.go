package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"Gin_postgres_redis_radio_lending/db"
	"Gin_postgres_redis_radio_lending/models"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 路由直接挂控制器，auth 用打桩中间件；会话/Redis 不进测试
func newTestRouter(t *testing.T) (*gin.Engine, *db.Repo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(gdb))

	repo := db.NewRepo(gdb)
	s := &Srv{Repo: repo, Log: zap.NewNop()}

	fakeAuth := func(c *gin.Context) {
		c.Set("userID", uuid.NewString())
		c.Set("username", "tester")
		c.Set("isAdmin", true)
		c.Next()
	}

	loanCtl := NewLoanController(s)
	deviceCtl := NewDeviceController(s)

	r := gin.New()
	r.POST("/api/devices", fakeAuth, deviceCtl.CreateDevice)
	r.GET("/api/devices/:id", fakeAuth, deviceCtl.GetDevice)
	r.PATCH("/api/devices/:id/status", fakeAuth, deviceCtl.SetStatus)
	r.POST("/api/devices/:id/borrow", fakeAuth, loanCtl.Borrow)
	r.POST("/api/loans/:loanId/return", fakeAuth, loanCtl.Return)
	r.GET("/api/loans", fakeAuth, loanCtl.ListLoans)
	r.GET("/api/loans/export", fakeAuth, loanCtl.ExportCSV)
	r.GET("/api/audit", fakeAuth, loanCtl.ListAudit)
	return r, repo
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seedDeviceHTTP(t *testing.T, r *gin.Engine) models.Device {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/devices", gin.H{"serial": "RD-" + uuid.NewString()[:8], "name": "Handheld radio"})
	require.Equal(t, http.StatusCreated, w.Code)
	var d models.Device
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	return d
}

func TestBorrowEndpointStatusMapping(t *testing.T) {
	r, _ := newTestRouter(t)
	dev := seedDeviceHTTP(t, r)

	// 成功 → 201
	w := doJSON(t, r, http.MethodPost, "/api/devices/"+dev.ID+"/borrow", gin.H{"borrowerName": "Max"})
	require.Equal(t, http.StatusCreated, w.Code)
	var loan models.Loan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loan))
	assert.Equal(t, "Max", loan.BorrowerName)

	// 已借出 → 409
	w = doJSON(t, r, http.MethodPost, "/api/devices/"+dev.ID+"/borrow", gin.H{"borrowerName": "Anna"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// 未知设备 → 404
	w = doJSON(t, r, http.MethodPost, "/api/devices/"+uuid.NewString()+"/borrow", gin.H{"borrowerName": "Max"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 缺 borrowerName → 400（binding 拦截）
	w = doJSON(t, r, http.MethodPost, "/api/devices/"+dev.ID+"/borrow", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReturnEndpointStatusMapping(t *testing.T) {
	r, _ := newTestRouter(t)
	dev := seedDeviceHTTP(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/devices/"+dev.ID+"/borrow", gin.H{"borrowerName": "Max"})
	require.Equal(t, http.StatusCreated, w.Code)
	var loan models.Loan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loan))

	// 成功 → 200，备注落库
	w = doJSON(t, r, http.MethodPost, "/api/loans/"+loan.ID+"/return", gin.H{"returnNote": "fine"})
	require.Equal(t, http.StatusOK, w.Code)
	var returned models.Loan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &returned))
	require.NotNil(t, returned.ReturnNote)
	assert.Equal(t, "fine", *returned.ReturnNote)

	// 双重归还 → 409
	w = doJSON(t, r, http.MethodPost, "/api/loans/"+loan.ID+"/return", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// 未知借条 → 404
	w = doJSON(t, r, http.MethodPost, "/api/loans/"+uuid.NewString()+"/return", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReturnRejectsMalformedBody(t *testing.T) {
	r, repo := newTestRouter(t)
	dev := seedDeviceHTTP(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/devices/"+dev.ID+"/borrow", gin.H{"borrowerName": "Max"})
	require.Equal(t, http.StatusCreated, w.Code)
	var loan models.Loan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loan))

	// 坏 JSON → 400，借条保持未归还
	req := httptest.NewRequest(http.MethodPost, "/api/loans/"+loan.ID+"/return", strings.NewReader(`{"returnNote":`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	got, err := repo.FindLoanByID(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ReturnedAt)

	// 空 body 仍然是合法的无备注归还
	w = doJSON(t, r, http.MethodPost, "/api/loans/"+loan.ID+"/return", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetDeviceShowsOpenLoan(t *testing.T) {
	r, _ := newTestRouter(t)
	dev := seedDeviceHTTP(t, r)

	w := doJSON(t, r, http.MethodGet, "/api/devices/"+dev.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Device   models.Device `json:"device"`
		OpenLoan *models.Loan  `json:"openLoan"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Nil(t, out.OpenLoan)

	w = doJSON(t, r, http.MethodPost, "/api/devices/"+dev.ID+"/borrow", gin.H{"borrowerName": "Max"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/devices/"+dev.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	out.OpenLoan = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, models.DeviceOnLoan, out.Device.Status)
	require.NotNil(t, out.OpenLoan)
	assert.Equal(t, "Max", out.OpenLoan.BorrowerName)
}

func TestStatusOverrideEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	dev := seedDeviceHTTP(t, r)

	w := doJSON(t, r, http.MethodPatch, "/api/devices/"+dev.ID+"/status", gin.H{"status": "DEFECT"})
	require.Equal(t, http.StatusOK, w.Code)

	// 故障设备不可借 → 409
	w = doJSON(t, r, http.MethodPost, "/api/devices/"+dev.ID+"/borrow", gin.H{"borrowerName": "Max"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// 非法状态 → 400
	w = doJSON(t, r, http.MethodPatch, "/api/devices/"+dev.ID+"/status", gin.H{"status": "ON_LOAN"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBorrowWritesAudit(t *testing.T) {
	r, repo := newTestRouter(t)
	dev := seedDeviceHTTP(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/devices/"+dev.ID+"/borrow", gin.H{"borrowerName": "Max"})
	require.Equal(t, http.StatusCreated, w.Code)

	res, err := repo.ListAudit(context.Background(), dev.ID, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Total)
	assert.Equal(t, models.AuditBorrow, res.Items[0].Action)
	assert.Equal(t, "tester", res.Items[0].ActorUsername)
}

func TestExportCSV(t *testing.T) {
	r, _ := newTestRouter(t)
	dev := seedDeviceHTTP(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/devices/"+dev.ID+"/borrow", gin.H{"borrowerName": "Max"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/loans/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "device_serial")
	assert.Contains(t, lines[1], "Max")
	assert.Contains(t, lines[1], dev.Serial)
}
