package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/pool-relayer/internal/api/dto"
	"github.com/cuongbtq/pool-relayer/internal/relayer/chain"
	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
	"github.com/gin-gonic/gin"
)

// ErrJobNotExist is the message returned for unknown job ids
const ErrJobNotExist = "The job doesn't exist"

// Root handles GET /
func (h *RelayerHandler) Root(c *gin.Context) {
	c.String(http.StatusOK, fmt.Sprintf("This is %s %s. Check the /status for settings", h.serviceName, h.version))
}

// Health handles GET /health
func (h *RelayerHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.serviceName,
	})
}

// CreateTransaction handles POST /transaction. It validates the body and
// queues a relay job; the job id is returned as plain text.
func (h *RelayerHandler) CreateTransaction(c *gin.Context) {
	var req dto.TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid transaction request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	jobID, err := h.jobs.Enqueue(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.logger.Error("Failed to enqueue transaction", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to queue transaction"})
		return
	}

	h.logger.Info("Transaction queued",
		slog.String("job_id", jobID),
		slog.String("recipient", req.ExtData.Recipient),
	)
	c.String(http.StatusOK, jobID)
}

// GetJob handles GET /job/:job_id
func (h *RelayerHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.jobs.GetStatus(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: ErrJobNotExist})
			return
		}
		h.logger.Error("Failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get job"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// Status handles GET /status
func (h *RelayerHandler) Status(c *gin.Context) {
	resp := dto.StatusResponse{
		RelayerAddress: h.relayerAddress.Hex(),
		RewardAddress:  h.rewardAddress.Hex(),
		ChainID:        h.chainID,
		Version:        h.version,
	}

	ok, balance, err := chain.CheckSenderBalance(c.Request.Context(), h.balances, h.relayerAddress, h.minimumBalance)
	switch {
	case err != nil:
		h.logger.Error("Failed to check sender balance", slog.String("error", err.Error()))
		resp.Health = dto.Health{Status: false, Error: "Failed to read relayer balance"}
	case !ok:
		resp.Health = dto.Health{Status: false, Balance: balance.String(), Error: "Not enough balance"}
	default:
		resp.Health = dto.Health{Status: true, Balance: balance.String()}
	}

	if h.metrics != nil {
		h.metrics.RecordSenderBalance(resp.Health.Status)
	}

	c.JSON(http.StatusOK, resp)
}
