package handler

import (
	"net/http"

	"github.com/arstate/FAFA-BIMBEL/internal/model"
	"github.com/arstate/FAFA-BIMBEL/internal/response"
	"github.com/arstate/FAFA-BIMBEL/internal/service"
	"github.com/arstate/FAFA-BIMBEL/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// itemRef reads the :classId/:weekId/:itemId route params.
func itemRef(c *gin.Context) model.ItemRef {
	return model.ItemRef{
		ClassID: c.Param("classId"),
		WeekID:  c.Param("weekId"),
		ItemID:  c.Param("itemId"),
	}
}

// ClassHandler handles admin-facing content management: classes, weeks,
// items, questions and results.
type ClassHandler struct {
	contentService *service.ContentService
	log            zerolog.Logger
}

// NewClassHandler creates a new ClassHandler.
func NewClassHandler(contentService *service.ContentService, log zerolog.Logger) *ClassHandler {
	return &ClassHandler{
		contentService: contentService,
		log:            log.With().Str("component", "class_handler").Logger(),
	}
}

// ListClasses godoc
// GET /api/v1/admin/classes
func (h *ClassHandler) ListClasses(c *gin.Context) {
	classes, err := h.contentService.ListClasses(c.Request.Context())
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"classes": classes})
}

// CreateClass godoc
// POST /api/v1/admin/classes
// Creates a class with a freshly generated access code.
func (h *ClassHandler) CreateClass(c *gin.Context) {
	var req model.CreateClassRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	class, err := h.contentService.CreateClass(c.Request.Context(), &req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"class": class})
}

// GetClass godoc
// GET /api/v1/admin/classes/:classId
// Returns the full class tree including answers, results and threads.
func (h *ClassHandler) GetClass(c *gin.Context) {
	class, err := h.contentService.GetClass(c.Request.Context(), c.Param("classId"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"class": class})
}

// AddWeek godoc
// POST /api/v1/admin/classes/:classId/weeks
func (h *ClassHandler) AddWeek(c *gin.Context) {
	var req model.CreateWeekRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	week, err := h.contentService.AddWeek(c.Request.Context(), c.Param("classId"), &req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"week": week})
}

// AddItem godoc
// POST /api/v1/admin/classes/:classId/weeks/:weekId/items
// Adds a material or a quiz to a week.
func (h *ClassHandler) AddItem(c *gin.Context) {
	var req model.CreateItemRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	item, err := h.contentService.AddItem(c.Request.Context(), c.Param("classId"), c.Param("weekId"), &req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"item": item})
}

// GetItem godoc
// GET /api/v1/admin/classes/:classId/weeks/:weekId/items/:itemId
func (h *ClassHandler) GetItem(c *gin.Context) {
	item, err := h.contentService.GetItem(c.Request.Context(), itemRef(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"item": item})
}

// UpdateItem godoc
// PATCH /api/v1/admin/classes/:classId/weeks/:weekId/items/:itemId
// Only the fields present in the body are changed.
func (h *ClassHandler) UpdateItem(c *gin.Context) {
	var req model.UpdateItemRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	item, err := h.contentService.UpdateItem(c.Request.Context(), itemRef(c), &req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"item": item})
}

// ListQuestions godoc
// GET /api/v1/admin/classes/:classId/weeks/:weekId/items/:itemId/questions
func (h *ClassHandler) ListQuestions(c *gin.Context) {
	questions, err := h.contentService.ListQuestions(c.Request.Context(), itemRef(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// AddQuestion godoc
// POST /api/v1/admin/classes/:classId/weeks/:weekId/items/:itemId/questions
func (h *ClassHandler) AddQuestion(c *gin.Context) {
	var req model.CreateQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.contentService.AddQuestion(c.Request.Context(), itemRef(c), &req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"question": question})
}

// RemoveQuestion godoc
// DELETE /api/v1/admin/classes/:classId/weeks/:weekId/items/:itemId/questions/:questionId
func (h *ClassHandler) RemoveQuestion(c *gin.Context) {
	if err := h.contentService.RemoveQuestion(c.Request.Context(), itemRef(c), c.Param("questionId")); err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "question removed"})
}

// ListResults godoc
// GET /api/v1/admin/classes/:classId/weeks/:weekId/items/:itemId/results
func (h *ClassHandler) ListResults(c *gin.Context) {
	results, err := h.contentService.ListResults(c.Request.Context(), itemRef(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"results": results})
}
