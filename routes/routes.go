package routes

import (
	"Gin_postgres_redis_radio_lending/app"
	"Gin_postgres_redis_radio_lending/controllers"
	"time"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	// 控制器与依赖
	s := controllers.GetSrv(a)
	authCtl := controllers.NewAuthController(s)
	deviceCtl := controllers.NewDeviceController(s)
	loanCtl := controllers.NewLoanController(s)
	userCtl := controllers.NewUserController(s)
	inviteCtl := controllers.NewInviteController(s)

	// 复用的中间件
	authMW := app.AuthRequired(s.AppSess, s.Repo)
	adminMW := app.AdminOnly()
	seenMW := app.TouchLastSeen(s.Repo, a.RDB, 5*time.Minute)
	loginLimit := app.RateLimit(a.RDB, time.Minute, 10)

	// ------------------------------
	// 登录/注册（公开）
	// ------------------------------
	auth := r.Group("/auth")
	{
		auth.POST("/login", loginLimit, authCtl.Login)
		auth.POST("/register", loginLimit, authCtl.Register)
	}

	authed := auth.Group("", authMW, seenMW)
	{
		authed.GET("/whoami", authCtl.Whoami)
		authed.POST("/logout", authCtl.Logout)
	}

	// ------------------------------
	// 邀请 / 用户管理（仅管理员）
	// ------------------------------
	admin := r.Group("/admin", authMW, adminMW)
	{
		admin.POST("/invites", inviteCtl.CreateInvite)
	}

	users := r.Group("/api/users", authMW, adminMW)
	{
		users.GET("", userCtl.ListUsers)
		users.GET("/:id", userCtl.GetUser)
		users.DELETE("/:id", userCtl.DeleteUser)
	}

	// ------------------------------
	// 设备管理（仅管理员）
	// ------------------------------
	devicesAdmin := r.Group("/api/devices", authMW, adminMW)
	{
		devicesAdmin.POST("", deviceCtl.CreateDevice)
		devicesAdmin.PUT("/:id", deviceCtl.UpdateDevice)
		devicesAdmin.PATCH("/:id/status", deviceCtl.SetStatus)
		devicesAdmin.DELETE("/:id", deviceCtl.DeleteDevice)
	}

	// ------------------------------
	// 借还 + 查询（登录即可）
	// ------------------------------
	devices := r.Group("/api/devices", authMW, seenMW)
	{
		devices.GET("", deviceCtl.ListDevices)
		devices.GET("/:id", deviceCtl.GetDevice)
		devices.POST("/:id/borrow", loanCtl.Borrow)
	}

	loans := r.Group("/api/loans", authMW, seenMW)
	{
		loans.GET("", loanCtl.ListLoans) // ?status=open|returned&deviceId=&borrower=
		loans.GET("/export", loanCtl.ExportCSV)
		loans.POST("/:loanId/return", loanCtl.Return)
	}

	api := r.Group("/api", authMW, seenMW)
	{
		api.GET("/dashboard", deviceCtl.Dashboard)
		api.GET("/audit", loanCtl.ListAudit)
	}
}
