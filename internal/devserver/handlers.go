package devserver

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nebulaglass/nebula-client/pkg/types"
)

// maxUploadSize bounds the multipart body
const maxUploadSize = 20 << 20

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".txt":  true,
	".csv":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

const serviceName = "NebulaGlass AI"

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, types.HealthStatus{Status: "ok", Service: serviceName})
}

func documentJSON(doc *document) types.Document {
	return types.Document{
		ID:         doc.ID,
		Filename:   doc.Filename,
		UploadDate: types.Timestamp{Time: doc.UploadDate},
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, "Document id must be an integer")
		return 0, false
	}
	return id, true
}

func (s *Server) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	header, err := c.FormFile("file")
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, "Field 'file' is required")
		return
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(header.Filename))] {
		detail(c, http.StatusBadRequest, "Unsupported file type")
		return
	}

	f, err := header.Open()
	if err != nil {
		_ = c.Error(err)
		detail(c, http.StatusInternalServerError, "Failed to read upload")
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		_ = c.Error(err)
		detail(c, http.StatusInternalServerError, "Failed to read upload")
		return
	}

	u := currentUser(c)
	doc := s.store.addDocument(u.ID, filepath.Base(header.Filename), extractText(content))
	s.logger.Info("Document uploaded",
		zap.Int64("document_id", doc.ID),
		zap.String("filename", doc.Filename),
		zap.Int("bytes", len(content)))
	c.JSON(http.StatusOK, documentJSON(doc))
}

// extractText keeps readable uploads as they are. Binary formats carry no
// text in the stub.
func extractText(content []byte) string {
	if !utf8.Valid(content) {
		return ""
	}
	return string(content)
}

func (s *Server) listDocuments(c *gin.Context) {
	docs := s.store.documentsOf(currentUser(c).ID)
	out := make([]types.Document, 0, len(docs))
	for _, doc := range docs {
		out = append(out, documentJSON(doc))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getDocument(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	doc, err := s.store.document(currentUser(c).ID, id)
	if err != nil {
		detail(c, http.StatusNotFound, "Document not found")
		return
	}

	text := doc.Text
	c.JSON(http.StatusOK, types.DocumentDetail{Document: documentJSON(doc), Text: &text})
}

func (s *Server) deleteDocument(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.store.deleteDocument(currentUser(c).ID, id); err != nil {
		detail(c, http.StatusNotFound, "Document not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) analyze(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var hints *types.AnalyzeContext
	if c.Request.ContentLength != 0 {
		hints = &types.AnalyzeContext{}
		if err := c.ShouldBindJSON(hints); err != nil && err != io.EOF {
			detail(c, http.StatusUnprocessableEntity, "Invalid analysis context")
			return
		}
	}

	doc, err := s.store.document(currentUser(c).ID, id)
	if err != nil {
		detail(c, http.StatusNotFound, "Document not found")
		return
	}

	if s.warmingUp() {
		detail(c, http.StatusServiceUnavailable, "Analysis models are still loading")
		return
	}

	analysis := analyze(doc.ID, doc.Text, hints)
	s.store.saveAnalysis(analysis)
	s.logger.Info("Document analysed",
		zap.Int64("document_id", doc.ID),
		zap.String("classification", *analysis.Classification))
	c.JSON(http.StatusOK, analysis)
}

// warmingUp consumes one of the configured initial failures
func (s *Server) warmingUp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failuresLeft > 0 {
		s.failuresLeft--
		return true
	}
	return false
}

func (s *Server) getAnalysis(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	analysis, err := s.store.analysis(currentUser(c).ID, id)
	if err != nil {
		detail(c, http.StatusNotFound, "Analysis not found")
		return
	}
	c.JSON(http.StatusOK, analysis)
}

func (s *Server) askQuestion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var q types.Question
	if err := c.ShouldBindJSON(&q); err != nil || strings.TrimSpace(q.Question) == "" {
		detail(c, http.StatusUnprocessableEntity, "Field 'question' is required")
		return
	}

	doc, err := s.store.document(currentUser(c).ID, id)
	if err != nil {
		detail(c, http.StatusNotFound, "Document not found")
		return
	}
	c.JSON(http.StatusOK, types.Answer{Question: q.Question, Answer: answer(doc.Text)})
}
