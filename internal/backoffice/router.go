package backoffice

import (
	"net/http"
	"strings"

	"github.com/evetabi/prediction/internal/backoffice/handler"
	"github.com/evetabi/prediction/internal/config"
	"github.com/evetabi/prediction/internal/repository"
	"github.com/evetabi/prediction/internal/service"
	"github.com/evetabi/prediction/internal/ws"
	"github.com/gin-gonic/gin"
)

// BackofficeDeps bundles every dependency needed for the admin router.
type BackofficeDeps struct {
	AuthSvc      *service.AuthService
	MarketSvc    *service.MarketService
	LPSvc        *service.LPService
	OracleSvc    *service.OracleService
	OperatorRepo *repository.OperatorRepository
	CategoryRepo *repository.CategoryRepository
	PositionRepo *repository.PositionRepository
	LPRepo       *repository.LPRepository
	Settlement   handler.RiskSettlementSource
	Hub          *ws.Hub
	Cfg          *config.Config
}

// SetupBackofficeRouter creates the admin Gin engine on port 8081.
func SetupBackofficeRouter(deps BackofficeDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(ipWhitelistMiddleware(deps.Cfg.Server.BackofficeAllowedIPs))

	dashH := handler.NewDashboardHandler(deps.MarketSvc, deps.LPSvc, deps.OracleSvc, deps.Hub, deps.Cfg)
	marketH := handler.NewMarketAdminHandler(deps.MarketSvc, deps.OracleSvc, deps.CategoryRepo)
	operatorH := handler.NewOperatorAdminHandler(deps.OperatorRepo, deps.AuthSvc)
	riskH := handler.NewRiskHandler(deps.MarketSvc, deps.LPSvc, deps.Settlement)
	financeH := handler.NewFinanceHandler(deps.PositionRepo, deps.LPRepo, deps.Cfg)

	jwtMW := adminJWTMiddleware(deps.AuthSvc)

	admin := r.Group("/admin")
	admin.Use(jwtMW)
	{
		admin.GET("/dashboard", dashH.Dashboard)

		// Markets
		m := admin.Group("/markets")
		{
			m.GET("", marketH.List)
			m.GET("/:id", marketH.Detail)
			m.POST("/:id/close", marketH.Close)
			m.POST("/:id/resolve", marketH.Resolve)
		}

		// Operators (backoffice staff accounts — §1, §9)
		op := admin.Group("/operators")
		{
			op.GET("", operatorH.List)
			op.GET("/:id", operatorH.Detail)
			op.POST("", operatorH.Create)
			op.POST("/:id/suspend", operatorH.Suspend)
			op.POST("/:id/activate", operatorH.Activate)
			op.POST("/:id/role", operatorH.SetRole)
		}

		// Risk
		risk := admin.Group("/risk")
		{
			risk.GET("/live", riskH.Live)
			risk.GET("/settlement-status", riskH.SettlementStatus)
			risk.GET("/alerts", riskH.Alerts)
		}

		// Finance
		fin := admin.Group("/finance")
		{
			fin.GET("/report", financeH.Report)
			fin.GET("/lp-ledger", financeH.LPLedger)
		}
	}

	return r
}

// ── IP whitelist middleware ───────────────────────────────────────────────────

// ipWhitelistMiddleware blocks requests from IPs not in the allowlist.
// allowedIPs is a comma-separated string; empty means allow all.
func ipWhitelistMiddleware(allowedIPs string) gin.HandlerFunc {
	if allowedIPs == "" {
		return func(c *gin.Context) { c.Next() } // dev mode: no restriction
	}

	allowed := make(map[string]bool)
	for _, ip := range strings.Split(allowedIPs, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			allowed[ip] = true
		}
	}

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !allowed[clientIP] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "access denied: your IP is not whitelisted",
			})
			return
		}
		c.Next()
	}
}

// ── Admin JWT middleware ──────────────────────────────────────────────────────

// adminJWTMiddleware validates a JWT and requires the caller to have a
// backoffice-capable role (admin, risk, finance, ops, readonly).
func adminJWTMiddleware(authSvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := authSvc.ParseAccessToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil || claims.TokenType != "access" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		// Require at least one backoffice role
		backofficeRoles := map[string]bool{
			"admin":    true,
			"risk":     true,
			"finance":  true,
			"ops":      true,
			"readonly": true,
		}
		if !backofficeRoles[claims.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}

		c.Set("userID", claims.Subject)
		c.Set("role", claims.Role)
		c.Next()
	}
}
