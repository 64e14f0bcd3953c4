// Package api serves the operator HTTP surface: health, metrics and
// read-only views of the ledger and exposure.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/observability"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// LedgerReader is the read side of the ledger.
type LedgerReader interface {
	FindByOriginalSignature(ctx context.Context, signature string) ([]*domain.TradeRecord, error)
	Recent(ctx context.Context, limit int) ([]*domain.TradeRecord, error)
	Stats(ctx context.Context) (*domain.LedgerStats, error)
	Healthy() error
}

// ExposureReader reports the copy wallet's open position.
type ExposureReader interface {
	Current() decimal.Decimal
	Reserved() decimal.Decimal
}

// QueueReader reports monitor queue pressure.
type QueueReader interface {
	Len() int
	Dropped() uint64
}

// Options configures a Server.
type Options struct {
	Ledger   LedgerReader
	Exposure ExposureReader // optional
	Queue    QueueReader    // optional
	Policy   domain.ExecutionPolicy
	Mode     string
	Logger   *zap.Logger
}

// Server is the operator API.
type Server struct {
	ledger   LedgerReader
	exposure ExposureReader
	queue    QueueReader
	policy   domain.ExecutionPolicy
	mode     string
	started  time.Time
	logger   *zap.Logger
	router   *gin.Engine
}

// NewServer builds the router.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		ledger:   opts.Ledger,
		exposure: opts.Exposure,
		queue:    opts.Queue,
		policy:   opts.Policy,
		mode:     opts.Mode,
		started:  time.Now(),
		logger:   logger.Named("api"),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(ginzap.Ginzap(s.logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(s.logger, true))

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(observability.Handler()))

	v1 := router.Group("/v1")
	{
		v1.GET("/trades", s.handleListTrades)
		v1.GET("/trades/:signature", s.handleGetTrades)
		v1.GET("/stats", s.handleStats)
		v1.GET("/exposure", s.handleExposure)
	}

	s.router = router
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"mode":           s.mode,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	}
	if s.queue != nil {
		body["queue_depth"] = s.queue.Len()
		body["dropped_updates"] = s.queue.Dropped()
	}

	if err := s.ledger.Healthy(); err != nil {
		body["status"] = "faulted"
		body["error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "ok"
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleGetTrades(c *gin.Context) {
	signature := c.Param("signature")
	recs, err := s.ledger.FindByOriginalSignature(c.Request.Context(), signature)
	if err != nil {
		s.logger.Warn("trade lookup failed", zap.String("signature", signature), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load trades"})
		return
	}
	if len(recs) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no trades for signature"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"signature": signature,
		"trades":    toTradeViews(recs),
		"count":     len(recs),
	})
}

func (s *Server) handleListTrades(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		l, err := strconv.Atoi(raw)
		if err != nil || l <= 0 || l > maxListLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = l
	}

	recs, err := s.ledger.Recent(c.Request.Context(), limit)
	if err != nil {
		s.logger.Warn("trade list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load trades"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trades": toTradeViews(recs),
		"count":  len(recs),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.ledger.Stats(c.Request.Context())
	if err != nil {
		s.logger.Warn("stats failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stats"})
		return
	}

	byStatus := make(map[string]int64, len(stats.ByStatus))
	for k, v := range stats.ByStatus {
		byStatus[string(k)] = v
	}
	c.JSON(http.StatusOK, gin.H{
		"total":            stats.Total,
		"by_status":        byStatus,
		"success_rate":     stats.SuccessRate,
		"copied_volume":    stats.CopiedVolume.String(),
		"last_recorded_at": stats.LastRecordedAt,
	})
}

func (s *Server) handleExposure(c *gin.Context) {
	body := gin.H{
		"execution_enabled": s.policy.Enabled,
		"max_position_size": s.policy.MaxPositionSize.String(),
	}
	if s.exposure == nil {
		body["current"] = "0"
		body["reserved"] = "0"
		body["available"] = s.policy.MaxPositionSize.String()
		c.JSON(http.StatusOK, body)
		return
	}

	current := s.exposure.Current()
	reserved := s.exposure.Reserved()
	available := s.policy.MaxPositionSize.Sub(current).Sub(reserved)
	if available.IsNegative() {
		available = decimal.Zero
	}
	body["current"] = current.String()
	body["reserved"] = reserved.String()
	body["available"] = available.String()
	c.JSON(http.StatusOK, body)
}

// tradeView is the JSON shape of a record.
type tradeView struct {
	EventID           string  `json:"event_id"`
	OriginalSignature string  `json:"original_signature"`
	CopySignature     string  `json:"copy_signature,omitempty"`
	Wallet            string  `json:"wallet"`
	Protocol          string  `json:"protocol"`
	Direction         string  `json:"direction"`
	InputMint         string  `json:"input_mint"`
	OutputMint        string  `json:"output_mint"`
	InputAmount       string  `json:"input_amount"`
	OutputAmount      string  `json:"output_amount"`
	Price             float64 `json:"price"`
	AmountSOL         string  `json:"amount_sol"`
	Status            string  `json:"status"`
	Error             string  `json:"error,omitempty"`
	Attempts          int     `json:"attempts"`
	Slot              int64   `json:"slot"`
	DetectedAt        int64   `json:"detected_at"`
	CompletedAt       int64   `json:"completed_at"`
}

func toTradeViews(recs []*domain.TradeRecord) []tradeView {
	views := make([]tradeView, len(recs))
	for i, r := range recs {
		views[i] = tradeView{
			EventID:           r.EventID,
			OriginalSignature: r.OriginalSignature,
			CopySignature:     r.CopySignature,
			Wallet:            r.Wallet,
			Protocol:          string(r.Protocol),
			Direction:         string(r.Direction),
			InputMint:         r.InputMint,
			OutputMint:        r.OutputMint,
			InputAmount:       strconv.FormatUint(r.InputAmount, 10),
			OutputAmount:      strconv.FormatUint(r.OutputAmount, 10),
			Price:             r.Price,
			AmountSOL:         r.AmountSOL.String(),
			Status:            string(r.Status),
			Error:             r.Error,
			Attempts:          r.Attempts,
			Slot:              r.Slot,
			DetectedAt:        r.DetectedAt,
			CompletedAt:       r.CompletedAt,
		}
	}
	return views
}
