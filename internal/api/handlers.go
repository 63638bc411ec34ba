package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yuki5321/AIsindan/internal/diagnosis"
	"github.com/yuki5321/AIsindan/internal/domain"
	"github.com/yuki5321/AIsindan/internal/refine"
)

type handlers struct {
	svc     *diagnosis.Service
	db      HealthChecker
	service string
}

type predictRequest struct {
	Image string `json:"image"`
}

type refineRequest struct {
	InitialResults []domain.Candidate `json:"initial_results" binding:"dive"`
	Symptoms       []string           `json:"symptoms"`
}

type symptomsRequest struct {
	Symptoms []string `json:"symptoms"`
}

func (h *handlers) banner(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": h.service,
		"status":  "ok",
		"model":   h.svc.ModelID(),
		"endpoints": []string{
			"POST /predict_image",
			"POST /refine_diagnosis",
			"POST /api/diagnose/symptoms",
			"GET /api/conditions",
			"GET /api/symptoms",
		},
	})
}

func (h *handlers) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) readyz(c *gin.Context) {
	index := h.svc.IndexStatus(c.Request.Context())
	if h.db == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "disabled", "index": index})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"db":     fmt.Sprintf("unhealthy: %v", err),
			"index":  index,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "ok", "index": index})
}

func (h *handlers) predictImage(c *gin.Context) {
	var req predictRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	results, err := h.svc.Classify(c.Request.Context(), req.Image)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *handlers) refineDiagnosis(c *gin.Context) {
	var req refineRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	res, err := h.svc.Refine(c.Request.Context(), refine.Request{
		Candidates: req.InitialResults,
		Symptoms:   req.Symptoms,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) diagnoseSymptoms(c *gin.Context) {
	var req symptomsRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	matches, err := h.svc.RankBySymptoms(c.Request.Context(), req.Symptoms)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": matches})
}

func (h *handlers) listConditions(c *gin.Context) {
	conditions, err := h.svc.Conditions(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conditions": conditions})
}

func (h *handlers) getCondition(c *gin.Context) {
	condition, err := h.svc.Condition(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, condition)
}

func (h *handlers) listSymptoms(c *gin.Context) {
	symptoms, err := h.svc.Symptoms(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symptoms": symptoms})
}

func (h *handlers) reloadIndex(c *gin.Context) {
	status, err := h.svc.ReloadIndex(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reloaded", "index": status})
}
