package routes

import (
	"insumos-service/internal/handlers"
	"insumos-service/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRoutes configura todas as rotas da aplicação
func SetupRoutes(
	router *gin.Engine,
	loteHandler *handlers.LoteHandler,
	lancamentoHandler *handlers.LancamentoHandler,
	previewHandler *handlers.PreviewHandler,
	monitoringHandler *handlers.MonitoringHandler,
	healthChecker *middleware.HealthChecker,
) {
	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Lotes (entradas de estoque)
		lotes := v1.Group("/lotes")
		{
			lotes.POST("", loteHandler.RegistrarLote)
			lotes.GET("/produto/:id", loteHandler.ListarPorProduto)
			lotes.GET("/estoque-baixo/:propriedade", loteHandler.EstoqueBaixo)
		}

		// Prévia de custo (nunca muta estado)
		v1.POST("/preview", previewHandler.PreviewCusto)

		// Lançamentos (commit, edição e estorno)
		lancamentos := v1.Group("/lancamentos")
		{
			lancamentos.POST("", lancamentoHandler.RegistrarLancamento)
			lancamentos.GET("/:id", lancamentoHandler.GetLancamento)
			lancamentos.PUT("/:id", lancamentoHandler.AtualizarLancamento)
			lancamentos.DELETE("/:id", lancamentoHandler.ExcluirLancamento)
			lancamentos.GET("/safra/:id", lancamentoHandler.ListarPorSafra)
		}

		// Cache de catálogo
		cache := v1.Group("/cache")
		{
			cache.GET("/stats", loteHandler.CacheStats)
			cache.DELETE("/item/:id", loteHandler.InvalidateCacheItem)
		}

		// Monitoring routes
		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/metrics", monitoringHandler.GetMetrics)
			monitoring.GET("/metrics/summary", monitoringHandler.GetMetricsSummary)
			monitoring.GET("/ws", monitoringHandler.WebSocketMetrics)
		}
	}

	// Health check na raiz
	router.GET("/health", healthChecker.HealthCheck)
	router.GET("/health/monitoring", monitoringHandler.HealthCheck)

	// API info na raiz
	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "Insumos Service API",
			"version": "1.0.0",
			"status":  "running",
			"endpoints": gin.H{
				"health": "/health",
				"api":    "/api/v1",
				"lotes": gin.H{
					"registrar":     "POST /api/v1/lotes",
					"por_produto":   "GET /api/v1/lotes/produto/:id",
					"estoque_baixo": "GET /api/v1/lotes/estoque-baixo/:propriedade",
				},
				"preview": "POST /api/v1/preview",
				"lancamentos": gin.H{
					"registrar": "POST /api/v1/lancamentos",
					"obter":     "GET /api/v1/lancamentos/:id",
					"editar":    "PUT /api/v1/lancamentos/:id",
					"excluir":   "DELETE /api/v1/lancamentos/:id",
					"por_safra": "GET /api/v1/lancamentos/safra/:id",
				},
			},
		})
	})
}
