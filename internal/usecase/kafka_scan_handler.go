package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"MarketSweep/internal/domain/models"
	"MarketSweep/pkg/logger"
)

// KafkaScanHandler consumes scan requests from the request topic. Results fan
// out through the signal publisher like HTTP-triggered scans; the consumer's
// retry/DLQ machinery handles poison messages.
type KafkaScanHandler struct {
	topic string
	scan  *ScanUsecase
	log   *logger.Logger
}

func NewKafkaScanHandler(topic string, scan *ScanUsecase, log *logger.Logger) *KafkaScanHandler {
	return &KafkaScanHandler{topic: topic, scan: scan, log: log}
}

func (h *KafkaScanHandler) Topic() string { return h.topic }

func (h *KafkaScanHandler) Handle(ctx context.Context, data []byte) error {
	var req models.ScanRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("decode scan request: %w", err)
	}
	if !req.DateRange.Valid() {
		return fmt.Errorf("scan request: invalid date range")
	}
	if req.SetupType == "" {
		return fmt.Errorf("scan request: setup_type is required")
	}

	resp, err := h.scan.Execute(ctx, req)
	if err != nil {
		return fmt.Errorf("execute queued scan: %w", err)
	}
	h.log.Info("queued scan served",
		logger.String("setup", req.SetupType),
		logger.Int("signals", len(resp.Signals)),
		logger.String("status", resp.Status))
	return nil
}
