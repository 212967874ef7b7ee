// controllers/device_controller.go
package controllers

import (
	"net/http"
	"strconv"

	"Gin_postgres_redis_radio_lending/app"
	"Gin_postgres_redis_radio_lending/db"
	"Gin_postgres_redis_radio_lending/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type DeviceController struct{ *Srv }

func NewDeviceController(s *Srv) *DeviceController { return &DeviceController{Srv: s} }

// POST /api/devices —— 管理员登记一台设备
func (dc *DeviceController) CreateDevice(c *gin.Context) {
	var in struct {
		Serial string `json:"serial" binding:"required"`
		Name   string `json:"name" binding:"required"`
		Notes  string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}

	d := &models.Device{ID: uuid.NewString(), Serial: in.Serial, Name: in.Name, Notes: in.Notes}
	if err := dc.Repo.CreateDevice(c.Request.Context(), d); err != nil {
		writeRepoError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// GET /api/devices —— 列表（含当前借条） ?q=&status=&page=&size=
func (dc *DeviceController) ListDevices(c *gin.Context) {
	q := db.DeviceQuery{
		Q:      c.Query("q"),
		Status: c.Query("status"),
	}
	q.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	q.Size, _ = strconv.Atoi(c.DefaultQuery("size", "20"))

	res, err := dc.Repo.ListDevicesWithOpenLoan(c.Request.Context(), q)
	if err != nil {
		writeRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/devices/:id —— 详情，外借中附上当前借条
func (dc *DeviceController) GetDevice(c *gin.Context) {
	d, err := dc.Repo.FindDeviceByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeRepoError(c, err)
		return
	}

	out := app.H{"device": d}
	if d.Status == models.DeviceOnLoan {
		l, err := dc.Repo.OpenLoanForDevice(c.Request.Context(), d.ID)
		if err != nil && !db.IsNotFound(err) {
			writeRepoError(c, err)
			return
		}
		if err == nil {
			out["openLoan"] = l
		}
	}
	c.JSON(http.StatusOK, out)
}

// PUT /api/devices/:id —— 名称/备注
func (dc *DeviceController) UpdateDevice(c *gin.Context) {
	var in struct {
		Name  string `json:"name" binding:"required"`
		Notes string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}

	d, err := dc.Repo.UpdateDeviceMeta(c.Request.Context(), c.Param("id"), in.Name, in.Notes)
	if err != nil {
		writeRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// PATCH /api/devices/:id/status —— 管理端状态覆盖（不含 ON_LOAN）
func (dc *DeviceController) SetStatus(c *gin.Context) {
	var in struct {
		Status models.DeviceStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	d, err := dc.Repo.SetDeviceStatus(c.Request.Context(), id, in.Status)
	if err != nil {
		writeRepoError(c, err)
		return
	}

	actorID, actorName := actor(c)
	detail := string(in.Status)
	if _, err := dc.Repo.AppendAudit(c.Request.Context(), models.AuditSetStatus, &id, nil, actorID, actorName, &detail); err != nil {
		dc.Log.Warn("audit append failed", zap.String("device", id), zap.Error(err))
	}
	c.JSON(http.StatusOK, d)
}

// DELETE /api/devices/:id
func (dc *DeviceController) DeleteDevice(c *gin.Context) {
	id := c.Param("id")
	if err := dc.Repo.DeleteDevice(c.Request.Context(), id); err != nil {
		writeRepoError(c, err)
		return
	}

	actorID, actorName := actor(c)
	if _, err := dc.Repo.AppendAudit(c.Request.Context(), models.AuditDeleteDevice, &id, nil, actorID, actorName, nil); err != nil {
		dc.Log.Warn("audit append failed", zap.String("device", id), zap.Error(err))
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// GET /api/dashboard
func (dc *DeviceController) Dashboard(c *gin.Context) {
	counts, err := dc.Repo.Dashboard(c.Request.Context())
	if err != nil {
		writeRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}
