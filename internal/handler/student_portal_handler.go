package handler

import (
	"errors"
	"net/http"

	"github.com/arstate/FAFA-BIMBEL/internal/middleware"
	"github.com/arstate/FAFA-BIMBEL/internal/model"
	"github.com/arstate/FAFA-BIMBEL/internal/response"
	"github.com/arstate/FAFA-BIMBEL/internal/service"
	"github.com/arstate/FAFA-BIMBEL/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// StudentPortalHandler handles student-facing endpoints: joining classes,
// browsing content and taking quizzes.
type StudentPortalHandler struct {
	userService    *service.UserService
	contentService *service.ContentService
	quizService    *service.QuizSessionService
	log            zerolog.Logger
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	userService *service.UserService,
	contentService *service.ContentService,
	quizService *service.QuizSessionService,
	log zerolog.Logger,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		userService:    userService,
		contentService: contentService,
		quizService:    quizService,
		log:            log.With().Str("component", "student_portal_handler").Logger(),
	}
}

// JoinClass godoc
// POST /api/v1/student/classes/join
// Joins the class owning the access code.
func (h *StudentPortalHandler) JoinClass(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.JoinClassRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	class, err := h.userService.JoinClass(c.Request.Context(), claims.UserID, req.AccessCode)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"class": class})
}

// MyClasses godoc
// GET /api/v1/student/classes
func (h *StudentPortalHandler) MyClasses(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	classes, err := h.userService.MyClasses(c.Request.Context(), claims.UserID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"classes": classes})
}

// GetClass godoc
// GET /api/v1/student/classes/:classId
// Returns the class tree as the student may see it.
func (h *StudentPortalHandler) GetClass(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	class, err := h.contentService.StudentClassView(c.Request.Context(), c.Param("classId"), claims.UserID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"class": class})
}

// StartQuiz godoc
// POST /api/v1/student/classes/:classId/weeks/:weekId/items/:itemId/quiz/start
// Starts or resumes an attempt. A student with a result gets ALREADY_COMPLETED.
func (h *StudentPortalHandler) StartQuiz(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	state, err := h.quizService.Start(c.Request.Context(), itemRef(c), claims.Actor())
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"state": state})
}

// GetQuizState godoc
// GET /api/v1/student/classes/:classId/weeks/:weekId/items/:itemId/quiz
func (h *StudentPortalHandler) GetQuizState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	state, err := h.quizService.State(c.Request.Context(), itemRef(c), claims.UserID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"state": state})
}

// RecordAnswer godoc
// PUT /api/v1/student/classes/:classId/weeks/:weekId/items/:itemId/quiz/answers
func (h *StudentPortalHandler) RecordAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.RecordAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	state, err := h.quizService.RecordAnswer(c.Request.Context(), itemRef(c), claims.UserID, req.QuestionID, req.Answer)
	if err != nil {
		h.failWithState(c, err, state)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"state": state})
}

// SubmitQuiz godoc
// POST /api/v1/student/classes/:classId/weeks/:weekId/items/:itemId/quiz/submit
// Submitting twice returns the stored result.
func (h *StudentPortalHandler) SubmitQuiz(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	state, err := h.quizService.Submit(c.Request.Context(), itemRef(c), claims.UserID)
	if err != nil {
		h.failWithState(c, err, state)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"state": state})
}

// LeaveQuiz godoc
// POST /api/v1/student/classes/:classId/weeks/:weekId/items/:itemId/quiz/leave
// Abandons an in-progress attempt without submitting it.
func (h *StudentPortalHandler) LeaveQuiz(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	abandoned := h.quizService.Abandon(itemRef(c), claims.UserID)
	response.Success(c, http.StatusOK, gin.H{"abandoned": abandoned})
}

// GetMyResult godoc
// GET /api/v1/student/classes/:classId/weeks/:weekId/items/:itemId/quiz/result
func (h *StudentPortalHandler) GetMyResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	result, err := h.contentService.GetResult(c.Request.Context(), itemRef(c), claims.UserID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// failWithState reports a quiz error along with the session state, so the
// client can show a stored result or keep a retained attempt on screen.
func (h *StudentPortalHandler) failWithState(c *gin.Context, err error, state model.QuizSessionState) {
	status, code := errorStatus(err)
	if errors.Is(err, service.ErrSubmitFailed) {
		h.log.Error().Err(err).Str("student_id", state.StudentID).Msg("Quiz submit failed")
	}
	if state.Status == "" {
		response.Fail(c, status, code)
		return
	}
	response.FailWithData(c, status, code, gin.H{"state": state})
}
