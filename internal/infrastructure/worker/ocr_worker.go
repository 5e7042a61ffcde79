package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PendingOCRSource lists invoices still waiting for OCR
type PendingOCRSource interface {
	ListProcessing(ctx context.Context, limit int) ([]*entity.Invoice, error)
}

// OCRProcessor runs OCR for a single invoice
type OCRProcessor interface {
	ProcessOCR(ctx context.Context, invoiceID string) error
}

// OCRWorkerConfig holds configuration for the OCR worker
type OCRWorkerConfig struct {
	PollInterval   time.Duration
	BatchSize      int
	Concurrency    int
	ProcessTimeout time.Duration
}

// DefaultOCRWorkerConfig returns default configuration
func DefaultOCRWorkerConfig() OCRWorkerConfig {
	return OCRWorkerConfig{
		PollInterval:   10 * time.Second,
		BatchSize:      10,
		Concurrency:    2,
		ProcessTimeout: 60 * time.Second,
	}
}

// OCRStats is a snapshot of worker progress
type OCRStats struct {
	Processed int
	Failed    int
	LastPoll  time.Time
	LastError error
}

// OCRWorker polls invoices in the processing state and sends them to OCR
type OCRWorker struct {
	config    OCRWorkerConfig
	source    PendingOCRSource
	processor OCRProcessor
	logger    *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	stats   OCRStats
}

// NewOCRWorker creates a new OCR worker
func NewOCRWorker(config OCRWorkerConfig, source PendingOCRSource, processor OCRProcessor, logger *zap.Logger) *OCRWorker {
	def := DefaultOCRWorkerConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.Concurrency <= 0 {
		config.Concurrency = def.Concurrency
	}
	if config.ProcessTimeout <= 0 {
		config.ProcessTimeout = def.ProcessTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OCRWorker{
		config:    config,
		source:    source,
		processor: processor,
		logger:    logger,
	}
}

// Name returns the worker name for identification
func (w *OCRWorker) Name() string {
	return "OCRWorker"
}

// Start begins the polling loop
func (w *OCRWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("ocr worker already running")
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.running = true

	w.logger.Info("OCRWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize),
		zap.Int("concurrency", w.config.Concurrency))

	go w.pollLoop(ctx, w.done)
	return nil
}

// Stop cancels the loop and waits for the in-flight batch
func (w *OCRWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	stats := w.Stats()
	w.logger.Info("OCRWorker stopped",
		zap.Int("processed_count", stats.Processed),
		zap.Int("failed_count", stats.Failed))
	return nil
}

// Stats returns a snapshot of the worker counters
func (w *OCRWorker) Stats() OCRStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *OCRWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		w.poll(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll processes one batch. Per-invoice failures are counted, not returned,
// so one bad image cannot stall the queue.
func (w *OCRWorker) poll(ctx context.Context) {
	invoices, err := w.source.ListProcessing(ctx, w.config.BatchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("Failed to list invoices awaiting OCR", zap.Error(err))
		}
		w.record(0, 0, err)
		return
	}

	var (
		mu        sync.Mutex
		processed int
		failed    int
		lastErr   error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.config.Concurrency)
	for _, inv := range invoices {
		id := inv.ID
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, w.config.ProcessTimeout)
			defer cancel()

			err := w.processor.ProcessOCR(pctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				lastErr = err
				w.logger.Error("OCR processing failed",
					zap.String("invoice_id", id),
					zap.Error(err))
				return nil
			}
			processed++
			return nil
		})
	}
	_ = g.Wait()

	if len(invoices) > 0 {
		w.logger.Debug("OCR batch finished",
			zap.Int("batch", len(invoices)),
			zap.Int("processed", processed),
			zap.Int("failed", failed))
	}
	w.record(processed, failed, lastErr)
}

func (w *OCRWorker) record(processed, failed int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Processed += processed
	w.stats.Failed += failed
	w.stats.LastPoll = time.Now()
	if err != nil {
		w.stats.LastError = err
	}
}
