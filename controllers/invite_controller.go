package controllers

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"Gin_postgres_redis_radio_lending/app"

	"github.com/gin-gonic/gin"
)

type InviteController struct{ *Srv }

func NewInviteController(s *Srv) *InviteController { return &InviteController{Srv: s} }

// POST /admin/invites —— 生成一次性注册邀请
func (ic *InviteController) CreateInvite(c *gin.Context) {
	var in struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}

	buf := make([]byte, 16)
	rand.Read(buf)
	token := hex.EncodeToString(buf)

	_, actorName := actor(c)
	inv, err := ic.Repo.CreateInvite(c.Request.Context(), in.Email, token, time.Now().Add(24*time.Hour), actorName)
	if err != nil {
		writeRepoError(c, err)
		return
	}

	c.JSON(http.StatusCreated, app.H{
		"email":     inv.Email,
		"expiresAt": inv.ExpiresAt,
		"url":       fmt.Sprintf("%s/register?inviteToken=%s", ic.WebOrigin, token),
	})
}
