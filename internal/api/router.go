package api

import (
	"net/http"

	"github.com/evetabi/prediction/internal/api/handler"
	"github.com/evetabi/prediction/internal/api/middleware"
	"github.com/evetabi/prediction/internal/config"
	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/repository"
	"github.com/evetabi/prediction/internal/scheduler"
	"github.com/evetabi/prediction/internal/service"
	"github.com/evetabi/prediction/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	DB           *sqlx.DB
	AuthSvc      *service.AuthService
	MarketSvc    *service.MarketService
	PositionSvc  *service.PositionService
	OrderBookSvc *service.OrderBookService
	LPSvc        *service.LPService
	OracleSvc    *service.OracleService
	CategoryRepo *repository.CategoryRepository
	Settlement   interface {
		handler.SessionCloser
		handler.MMInfoSource
	}
	Scheduler *scheduler.Scheduler
	Hub       *ws.Hub
	Cfg       *config.Config
}

// SetupRouter creates and configures the main Gin engine with all routes,
// middleware, CORS, and rate limiting rules.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── Metrics (§10.2) ──────────────────────────────────────────────────────
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ── Handlers ─────────────────────────────────────────────────────────────
	betH := handler.NewBetHandler(deps.MarketSvc, deps.Settlement, deps.Cfg)
	orderbookH := handler.NewOrderBookHandler(deps.OrderBookSvc, deps.MarketSvc, deps.CategoryRepo)
	marketH := handler.NewMarketHandler(deps.MarketSvc, deps.CategoryRepo)
	positionH := handler.NewPositionHandler(deps.PositionSvc)
	oracleH := handler.NewOracleHandler(deps.OracleSvc)
	lpH := handler.NewLPHandler(deps.LPSvc)
	adminH := handler.NewAdminHandler(deps.DB, deps.MarketSvc, deps.OracleSvc, deps.LPSvc, deps.Scheduler, deps.Hub, deps.Cfg)
	mmH := handler.NewMMHandler(deps.Settlement)

	// ── Operator auth (backoffice staff only, §9) ─────────────────────────────
	jwtMW := middleware.JWTMiddleware(deps.AuthSvc)
	opsMW := middleware.RoleMiddleware(
		string(domain.OperatorAdmin),
		string(domain.OperatorOps),
	)

	// ── Rate limiters ─────────────────────────────────────────────────────────
	betRL := middleware.RateLimitMiddleware(30)  // 30 req/s per IP for bet/order placement
	adminRL := middleware.RateLimitMiddleware(5) // 5 req/s per IP for admin/oracle levers

	apiGroup := r.Group("/api")
	{
		// ── Bet placement (public — end users authenticate by address only) ──
		apiGroup.POST("/bet", betRL, betH.PlaceBet)

		// ── Orderbook ─────────────────────────────────────────────────────────
		orderbook := apiGroup.Group("/orderbook")
		{
			orderbook.POST("/order", betRL, orderbookH.PlaceOrder)
			orderbook.DELETE("/order/:orderId", orderbookH.CancelOrder)
			orderbook.GET("/depth/:marketId", orderbookH.GetDepth)
			orderbook.GET("/orders/:address", orderbookH.GetOrdersByAddress)
		}

		// ── Markets (public) ──────────────────────────────────────────────────
		apiGroup.GET("/market", marketH.GetMarkets)
		apiGroup.GET("/market/:id", marketH.GetMarketByID)

		// ── Positions (public — scoped by address, not by session) ───────────
		apiGroup.GET("/positions/:address", positionH.GetPositionsByAddress)

		// ── LP (public read/write — LPs identify by settlement address) ──────
		lp := apiGroup.Group("/lp")
		{
			lp.POST("/deposit", lpH.Deposit)
			lp.POST("/withdraw", lpH.Withdraw)
			lp.GET("/stats", lpH.GetStats)
			lp.GET("/share/:address", lpH.GetShare)
			lp.GET("/events", lpH.GetEvents)
		}

		// ── Market maker info (public) ────────────────────────────────────────
		apiGroup.GET("/mm/info", mmH.GetInfo)

		// ── Oracle / game controller (operator-gated) ─────────────────────────
		oracle := apiGroup.Group("/oracle")
		oracle.Use(jwtMW, opsMW, adminRL)
		{
			oracle.POST("/game-state", oracleH.SetGameState)
			oracle.POST("/market/open", oracleH.OpenMarket)
			oracle.POST("/market/close", oracleH.CloseMarket)
			oracle.POST("/outcome", oracleH.DetermineOutcome)
		}

		// ── Admin (operator-gated) ─────────────────────────────────────────────
		admin := apiGroup.Group("/admin")
		admin.Use(jwtMW, opsMW, adminRL)
		{
			admin.GET("/state", adminH.GetState)
			admin.POST("/reset", adminH.Reset)
			admin.GET("/config", adminH.GetConfig)
			admin.POST("/config", adminH.UpdateConfig)
		}
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware returns a gin middleware that sets appropriate CORS headers.
// In DEBUG mode all origins are allowed; in production only configured origins.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			// Development: allow any origin
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			// Production: allow only evetabi.com (and www.)
			allowed := map[string]bool{
				"https://evetabi.com":     true,
				"https://www.evetabi.com": true,
			}
			if allowed[origin] {
				c.Header("Access-Control-Allow-Origin", origin)
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
