package handlers

import (
	"fmt"
	"net/http"
	"time"

	"profile-backend/pkg/common"

	"go.uber.org/zap"
)

// BlockDurations are the demo delays exposed as /block-N-seconds
var BlockDurations = []int{3, 5, 10}

// BlockHandler serves the blocking demo routes. Each request holds its
// goroutine for the whole delay without yielding to the request context, which
// together with the in-flight gate reproduces a starved single-worker server.
type BlockHandler struct {
	unit   time.Duration
	sleep  func(time.Duration)
	logger *zap.Logger
}

// NewBlockHandler creates a block handler; unit is the length of one "second"
// and is shortened in tests.
func NewBlockHandler(unit time.Duration, logger *zap.Logger) *BlockHandler {
	if unit <= 0 {
		unit = time.Second
	}
	return &BlockHandler{unit: unit, sleep: time.Sleep, logger: logger}
}

// Block returns the handler for a delay of n units
func (h *BlockHandler) Block(n int) http.HandlerFunc {
	delay := time.Duration(n) * h.unit
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h.sleep(delay)

		h.logger.Debug("Blocking request finished",
			zap.Int("seconds", n),
			zap.Duration("elapsed", time.Since(start)),
		)
		common.RespondText(w, http.StatusOK, fmt.Sprintf("Blocked for %d seconds", n))
	}
}
