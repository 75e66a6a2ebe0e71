// Package server exposes the pipeline over HTTP with lifecycle
// management.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/raglab/docchat/internal/agent"
	"github.com/raglab/docchat/internal/app"
	"github.com/raglab/docchat/internal/index"
	"github.com/raglab/docchat/internal/models"
)

// maxUploadBytes bounds one multipart upload request.
const maxUploadBytes = 64 << 20

// Server wraps the HTTP API around a wired pipeline.
type Server struct {
	app       *app.App
	http      *http.Server
	logger    *slog.Logger
	maxUpload int64
}

// New builds the HTTP server and its routes.
func New(a *app.App, addr string, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{app: a, logger: logger, maxUpload: maxUploadBytes}

	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger(logger))

	api := router.Group("/api")
	api.GET("/healthz", s.healthz)
	api.GET("/stats", s.stats)
	api.POST("/upload", s.upload)
	api.POST("/query", s.query)
	api.GET("/sessions", s.sessions)
	api.GET("/sessions/:id/history", s.history)
	api.DELETE("/sessions/:id/documents/:doc", s.deleteDocument)

	s.http = &http.Server{
		Addr:           addr,
		Handler:        router,
		MaxHeaderBytes: 1 << 20,
	}
	return s
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.app.Metrics.Snapshot())
}

// upload ingests one or more multipart files for a session. Failures
// are reported per file; the batch always returns 200 with its
// reports unless the request itself is malformed.
func (s *Server) upload(c *gin.Context) {
	// The cap must wrap the body before any form accessor parses it.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload exceeds size limit"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form: " + err.Error()})
		return
	}

	var sessionID string
	if v := form.Value["session_id"]; len(v) > 0 {
		sessionID = v[0]
	}
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files supplied"})
		return
	}

	uploads := make([]agent.UploadInput, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "open " + fh.Filename + ": " + err.Error()})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "read " + fh.Filename + ": " + err.Error()})
			return
		}
		uploads = append(uploads, agent.UploadInput{
			Filename:  fh.Filename,
			Data:      data,
			SessionID: sessionID,
		})
	}

	reports := s.app.Ingestion.IngestBatch(c.Request.Context(), uploads)
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

type queryRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Query     string `json:"query" binding:"required"`
}

func (s *Server) query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	answer, err := s.app.Chat.HandleQuery(c.Request.Context(), req.SessionID, req.Query)
	if err != nil {
		if errors.Is(err, agent.ErrGenerationFailed) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "generation service unavailable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, answer)
}

func (s *Server) sessions(c *gin.Context) {
	ids, err := s.app.Chat.Sessions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": ids})
}

func (s *Server) history(c *gin.Context) {
	sessionID := c.Param("id")
	msgs, err := s.app.Chat.History(c.Request.Context(), sessionID, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "messages": msgs})
}

func (s *Server) deleteDocument(c *gin.Context) {
	sessionID := c.Param("id")
	documentID := c.Param("doc")

	removed, err := s.app.Retrieval.DeleteDocument(c.Request.Context(),
		agent.SessionNamespace(sessionID), documentID)
	if err != nil {
		if errors.Is(err, index.ErrInvalidNamespace) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"document_id": documentID, "removed": removed})
}
