package rag

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/studymate/backend/pkg/response"
)

// IngestRequest is the body for POST /rag/ingest.
type IngestRequest struct {
	Text     string            `json:"text" binding:"required"`
	Metadata map[string]string `json:"metadata"`
}

// QueryRequest is the body for POST /rag/query.
type QueryRequest struct {
	Question string            `json:"question" binding:"required"`
	Filters  map[string]string `json:"filters"`
	TopK     int               `json:"top_k"`
}

// Handler exposes direct ingestion and retrieval over HTTP.
type Handler struct {
	ingestor  *Ingestor
	retriever *Retriever
	logger    *zap.Logger
}

// NewHandler creates a RAG handler.
func NewHandler(ingestor *Ingestor, retriever *Retriever, logger *zap.Logger) *Handler {
	return &Handler{ingestor: ingestor, retriever: retriever, logger: logger}
}

// Ingest handles POST /rag/ingest (pre-extracted document or pasted text).
func (h *Handler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	stored, err := h.ingestor.Ingest(c.Request.Context(), req.Text, req.Metadata)
	if err != nil {
		h.logger.Error("text ingestion failed", zap.Error(err))
		response.Internal(c, "ingestion failed")
		return
	}
	response.OK(c, gin.H{"stored_chunks": stored})
}

// Query handles POST /rag/query. An empty contexts list is a successful
// response; only embedding/search failures return 500.
func (h *Handler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	contexts, err := h.retriever.Retrieve(c.Request.Context(), req.Question, req.Filters, req.TopK)
	if err != nil {
		h.logger.Error("retrieval failed", zap.Error(err))
		response.Internal(c, "retrieval failed")
		return
	}
	if contexts == nil {
		contexts = []string{}
	}
	response.OK(c, gin.H{"contexts": contexts})
}
