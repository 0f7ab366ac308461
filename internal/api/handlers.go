/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/augustdua/6degrees-sub006/internal/models"
	"github.com/augustdua/6degrees-sub006/internal/pricing"
	"github.com/augustdua/6degrees-sub006/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter wires the HTTP surface. Reads are public; writes require a
// bearer token.
func NewRouter(svc *ChainService, jwtSecret string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", healthz(svc))

	paths := r.Group("/api/paths")
	{
		paths.GET("/:chainId/participant-rewards", getParticipantRewards(svc))
		paths.GET("/:chainId/unlock-cost", getUnlockCost(svc))
	}

	authedPaths := r.Group("/api/paths", AuthRequired(jwtSecret))
	{
		authedPaths.POST("/:chainId/participants", joinChain(svc))
		authedPaths.POST("/:chainId/complete", completeChain(svc))
		authedPaths.POST("/:chainId/unlock", unlockChain(svc))
	}

	r.GET("/api/requests/:id", getRequest(svc))
	r.POST("/api/requests", AuthRequired(jwtSecret), createRequest(svc))

	return r
}

func healthz(svc *ChainService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func getParticipantRewards(svc *ChainService) gin.HandlerFunc {
	return func(c *gin.Context) {
		rewards, err := svc.ParticipantRewards(c.Request.Context(), c.Param("chainId"), time.Now().UTC())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rewards)
	}
}

func joinChain(svc *ChainService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body models.JoinChainRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		participant, err := svc.JoinChain(c.Request.Context(), c.Param("chainId"), authedUserId(c), body)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, participant)
	}
}

func completeChain(svc *ChainService) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := svc.CompleteChain(c.Request.Context(), c.Param("chainId"), authedUserId(c), time.Now().UTC())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func getUnlockCost(svc *ChainService) gin.HandlerFunc {
	return func(c *gin.Context) {
		cost, err := svc.UnlockCost(c.Request.Context(), c.Param("chainId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, cost)
	}
}

func unlockChain(svc *ChainService) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := svc.Unlock(c.Request.Context(), c.Param("chainId"), authedUserId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func createRequest(svc *ChainService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body models.CreateRequestBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		req, ch, err := svc.CreateConnectionRequest(c.Request.Context(), authedUserId(c), body)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"request": req, "chain": ch})
	}
}

func getRequest(svc *ChainService) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ch, err := svc.GetConnectionRequest(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"request": req, "chain": ch})
	}
}

// respondError maps domain errors to HTTP statuses. Integrity
// violations reject the write and leave chain state unchanged, so they
// surface as conflicts rather than server errors.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrChainNotFound),
		errors.Is(err, store.ErrRequestNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrParentNotFound),
		errors.Is(err, store.ErrParticipantOutsideChain),
		errors.Is(err, store.ErrParentTerminal),
		errors.Is(err, store.ErrDuplicateParticipant),
		errors.Is(err, store.ErrChainNotActive),
		errors.Is(err, store.ErrConcurrentModification),
		errors.Is(err, store.ErrAlreadyTerminal),
		errors.Is(err, pricing.ErrChainNotCompleted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrInsufficientCredits):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotCreator):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		zap.L().Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
