package controllers

import (
	"net/http"
	"strings"
	"time"

	"Gin_postgres_redis_radio_lending/app"
	"Gin_postgres_redis_radio_lending/db"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuthController struct{ *Srv }

func NewAuthController(s *Srv) *AuthController { return &AuthController{Srv: s} }

// POST /auth/login
func (ac *AuthController) Login(c *gin.Context) {
	var in struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}

	u, ok := ac.Repo.CheckPassword(c.Request.Context(), in.Username, in.Password)
	if !ok {
		// 不区分“不存在/密码错”
		c.JSON(http.StatusUnauthorized, app.H{"error": "invalid credentials"})
		return
	}

	if err := ac.issueSession(c.Request.Context(), c.Writer, u.ID, c.ClientIP(), c.Request.UserAgent()); err != nil {
		ac.Log.Error("issue session failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, app.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true, "user": u})
}

// POST /auth/logout —— 删 Redis 会话，Cookie 置空
func (ac *AuthController) Logout(c *gin.Context) {
	if ck, err := c.Request.Cookie(app.AppSessionCookie); err == nil && ck.Value != "" {
		_ = ac.AppSess.Delete(c.Request.Context(), ck.Value)
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // 删除
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   strings.HasPrefix(ac.WebOrigin, "https://"),
	})
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// GET /auth/whoami
func (ac *AuthController) Whoami(c *gin.Context) {
	uid, username := actor(c)
	isAdmin, _ := c.Get("isAdmin")
	c.JSON(http.StatusOK, app.H{
		"userID":   uid,
		"username": username,
		"isAdmin":  isAdmin,
	})
}

// POST /auth/register —— 凭一次性邀请 token 建号
func (ac *AuthController) Register(c *gin.Context) {
	var in struct {
		InviteToken string `json:"inviteToken" binding:"required"`
		Username    string `json:"username" binding:"required"`
		DisplayName string `json:"displayName"`
		Password    string `json:"password" binding:"required,min=10"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}

	// 先查 token 快速失败（省掉 bcrypt），真正的消费在事务里
	inv, err := ac.Repo.GetInviteByToken(c.Request.Context(), in.InviteToken)
	if err != nil {
		writeRepoError(c, err)
		return
	}
	if inv.UsedAt != nil || inv.ExpiresAt.Before(time.Now()) {
		writeRepoError(c, &db.ConflictError{Reason: "invite expired or already used"})
		return
	}

	display := in.DisplayName
	if display == "" {
		display = in.Username
	}
	// 消费 token + 建号同一事务：建号失败 token 不烧
	u, err := ac.Repo.RegisterWithInvite(c.Request.Context(), in.InviteToken, uuid.NewString(), in.Username, display, in.Password, true)
	if err != nil {
		writeRepoError(c, err)
		return
	}

	if err := ac.issueSession(c.Request.Context(), c.Writer, u.ID, c.ClientIP(), c.Request.UserAgent()); err != nil {
		ac.Log.Error("issue session failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, app.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, u)
}
