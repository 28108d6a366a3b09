package database

import (
	"fmt"
	"log"
	"time"

	"marketbill/internal/config"
	"marketbill/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitMySQL opens the connection pool and migrates the billing schema.
func InitMySQL(cfg *config.MySQLConfig) *gorm.DB {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("connect MySQL: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("get underlying sql.DB: %v", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	err = db.AutoMigrate(
		&model.Invoice{},
		&model.InvoiceItem{},
		&model.PaymentTransaction{},
		&model.WalletAccount{},
		&model.WalletTransaction{},
		&model.SellerRevenue{},
		&model.WithdrawalRequest{},
		&model.ProductStock{},
		&model.StockMovement{},
		&model.FinancialSettings{},
		&model.OutboxMessage{},
	)
	if err != nil {
		log.Fatalf("auto-migrate schema: %v", err)
	}

	DB = db
	log.Println("MySQL connected")
	return db
}
