package handler

import (
	"net/http"

	"github.com/arstate/FAFA-BIMBEL/internal/middleware"
	"github.com/arstate/FAFA-BIMBEL/internal/model"
	"github.com/arstate/FAFA-BIMBEL/internal/response"
	"github.com/arstate/FAFA-BIMBEL/internal/service"
	"github.com/arstate/FAFA-BIMBEL/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// CommentHandler serves the private per-item threads between each student
// and the admin. Students always address their own thread; the admin names
// the student with :studentId.
type CommentHandler struct {
	commentService *service.CommentService
	log            zerolog.Logger
}

// NewCommentHandler creates a new CommentHandler.
func NewCommentHandler(commentService *service.CommentService, log zerolog.Logger) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
		log:            log.With().Str("component", "comment_handler").Logger(),
	}
}

func threadRef(c *gin.Context, claims *service.Claims) model.ThreadRef {
	studentID := c.Param("studentId")
	if studentID == "" {
		studentID = claims.UserID
	}
	return model.ThreadRef{ItemRef: itemRef(c), StudentID: studentID}
}

// History godoc
// GET /api/v1/student/classes/:classId/weeks/:weekId/items/:itemId/comments
// GET /api/v1/admin/classes/:classId/weeks/:weekId/items/:itemId/comments/:studentId
func (h *CommentHandler) History(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	comments, err := h.commentService.History(c.Request.Context(), threadRef(c, claims), claims.Actor())
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"comments": comments})
}

// Send godoc
// POST /api/v1/student/classes/:classId/weeks/:weekId/items/:itemId/comments
// POST /api/v1/admin/classes/:classId/weeks/:weekId/items/:itemId/comments/:studentId
func (h *CommentHandler) Send(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SendCommentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	comment, err := h.commentService.Send(c.Request.Context(), threadRef(c, claims), claims.Actor(), req.Text)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"comment": comment})
}

// ListThreads godoc
// GET /api/v1/admin/classes/:classId/weeks/:weekId/items/:itemId/comments
// Returns the ids of students with a thread on the item.
func (h *CommentHandler) ListThreads(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	ids, err := h.commentService.ListThreads(c.Request.Context(), itemRef(c), claims.Actor())
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"student_ids": ids})
}
