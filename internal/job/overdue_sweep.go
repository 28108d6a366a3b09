package job

import (
	"context"
	"log"
	"time"

	"marketbill/internal/config"
	"marketbill/internal/repository"

	"gorm.io/gorm"
)

// OverdueSweepJob periodically flips unpaid invoices past their due date to
// Overdue. Overdue is a reporting state derived from the calendar, so it is
// swept here rather than maintained transactionally by the aggregate.
type OverdueSweepJob struct {
	db          *gorm.DB
	invoiceRepo *repository.InvoiceRepository
	cfg         *config.Config
	stopCh      chan struct{}
	interval    time.Duration
	batchSize   int
}

func NewOverdueSweepJob(db *gorm.DB, cfg *config.Config) *OverdueSweepJob {
	interval := time.Duration(cfg.Business.OverdueSweepMinutes) * time.Minute
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &OverdueSweepJob{
		db:          db,
		invoiceRepo: repository.NewInvoiceRepository(db),
		cfg:         cfg,
		stopCh:      make(chan struct{}),
		interval:    interval,
		batchSize:   200,
	}
}

func (j *OverdueSweepJob) Start(ctx context.Context) {
	log.Println("[OverdueSweep] started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OverdueSweep] context cancelled, exiting")
			return
		case <-j.stopCh:
			log.Println("[OverdueSweep] stopped")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *OverdueSweepJob) Stop() {
	close(j.stopCh)
}

func (j *OverdueSweepJob) sweep(ctx context.Context) {
	swept, err := j.invoiceRepo.MarkOverdue(ctx, time.Now(), j.batchSize)
	if err != nil {
		log.Printf("[OverdueSweep] sweep failed: %v", err)
		return
	}
	if swept > 0 {
		log.Printf("[OverdueSweep] marked %d invoices overdue", swept)
	}
}
