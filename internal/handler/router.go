package handler

import (
	"marketbill/internal/config"
	"marketbill/internal/infrastructure/gateway"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter wires middleware and routes.
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config, bank gateway.BankingGateway) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())
	r.Use(AuditMiddleware())

	h := NewHandler(db, rdb, cfg, bank)

	api := r.Group("/api/v1")
	{
		invoice := api.Group("/invoice")
		{
			invoice.POST("/create", h.CreateInvoice)
			invoice.GET("/detail", h.GetInvoice)
			invoice.GET("/list", h.ListInvoices)
			invoice.POST("/cancel", h.CancelInvoice)
		}

		pay := api.Group("/pay")
		{
			pay.POST("/wallet", h.PayInvoiceWithWallet)
			pay.POST("/gateway/start", h.StartGatewayPayment)
			pay.GET("/gateway/callback", h.GatewayCallback)
		}

		wallet := api.Group("/wallet")
		{
			wallet.GET("/balance", h.GetWallet)
			wallet.POST("/deposit", h.Deposit)
			wallet.GET("/transactions", h.ListWalletTransactions)
			wallet.POST("/lock", h.SetWalletLock)
		}

		seller := api.Group("/seller")
		{
			seller.GET("/revenue", h.SellerRevenueSummary)
		}

		withdrawal := api.Group("/withdrawal")
		{
			withdrawal.POST("/request", h.RequestWithdrawal)
			withdrawal.POST("/process", h.ProcessWithdrawal)
			withdrawal.POST("/reject", h.RejectWithdrawal)
			withdrawal.GET("/list", h.ListWithdrawals)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
