package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/arstate/FAFA-BIMBEL/internal/model"
	"github.com/arstate/FAFA-BIMBEL/internal/store"
	"github.com/rs/zerolog"
)

// Content errors.
var (
	ErrClassNotFound       = errors.New("class not found")
	ErrWeekNotFound        = errors.New("week not found")
	ErrItemNotFound        = errors.New("item not found")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrResultNotFound      = errors.New("result not found")
	ErrNotQuiz             = errors.New("item is not a quiz")
	ErrNotJoined           = errors.New("student has not joined this class")
	ErrAccessCodeExhausted = errors.New("could not allocate a unique access code")
)

const (
	accessCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	accessCodeLength   = 6
	accessCodeAttempts = 10
)

// ContentService manages classes, weeks, items, questions and results.
type ContentService struct {
	store store.Store
	log   zerolog.Logger
}

// NewContentService creates a new ContentService.
func NewContentService(s store.Store, log zerolog.Logger) *ContentService {
	return &ContentService{
		store: s,
		log:   log.With().Str("component", "content_service").Logger(),
	}
}

// CreateClass stores a new class under a freshly reserved access code.
func (s *ContentService) CreateClass(ctx context.Context, req *model.CreateClassRequest) (*model.ClassSession, error) {
	id, err := store.NewID()
	if err != nil {
		return nil, err
	}

	code, err := s.reserveAccessCode(ctx, id)
	if err != nil {
		return nil, err
	}

	class := &model.ClassSession{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		AccessCode:  code,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.Write(ctx, store.Paths.Class(id), class); err != nil {
		if rmErr := s.store.Remove(ctx, store.Paths.AccessCode(code)); rmErr != nil {
			s.log.Error().Err(rmErr).Str("code", code).Msg("failed to release access code")
		}
		return nil, fmt.Errorf("create class: %w", err)
	}

	s.log.Info().Str("class_id", id).Str("code", code).Msg("Class created")
	return class, nil
}

func (s *ContentService) reserveAccessCode(ctx context.Context, classID string) (string, error) {
	for i := 0; i < accessCodeAttempts; i++ {
		code, err := generateAccessCode()
		if err != nil {
			return "", err
		}
		ok, err := s.store.WriteIfAbsent(ctx, store.Paths.AccessCode(code), classID)
		if err != nil {
			return "", fmt.Errorf("reserve access code: %w", err)
		}
		if ok {
			return code, nil
		}
		s.log.Debug().Str("code", code).Msg("Access code collision, retrying")
	}
	return "", ErrAccessCodeExhausted
}

func generateAccessCode() (string, error) {
	buf := make([]byte, accessCodeLength)
	limit := big.NewInt(int64(len(accessCodeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		buf[i] = accessCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// ListClasses returns class summaries (without weeks), oldest first.
func (s *ContentService) ListClasses(ctx context.Context) ([]model.ClassSession, error) {
	snap, err := s.store.Read(ctx, store.Paths.Classes())
	if err != nil {
		return nil, err
	}
	children, err := snap.Children()
	if err != nil {
		return nil, err
	}

	classes := make([]model.ClassSession, 0, len(children))
	for _, child := range children {
		var c model.ClassSession
		if err := child.Decode(&c); err != nil {
			s.log.Warn().Err(err).Str("path", child.Path).Msg("skipping undecodable class")
			continue
		}
		c.Weeks = nil
		classes = append(classes, c)
	}
	sort.SliceStable(classes, func(i, j int) bool { return classes[i].CreatedAt.Before(classes[j].CreatedAt) })
	return classes, nil
}

// GetClass returns the full class tree.
func (s *ContentService) GetClass(ctx context.Context, classID string) (*model.ClassSession, error) {
	var c model.ClassSession
	if err := s.decode(ctx, store.Paths.Class(classID), &c, ErrClassNotFound); err != nil {
		return nil, err
	}
	return &c, nil
}

// AddWeek appends a week to a class.
func (s *ContentService) AddWeek(ctx context.Context, classID string, req *model.CreateWeekRequest) (*model.Week, error) {
	if err := s.mustExist(ctx, store.Paths.Class(classID), ErrClassNotFound); err != nil {
		return nil, err
	}
	week := &model.Week{
		Title:       req.Title,
		Description: req.Description,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := s.store.Append(ctx, store.Paths.Weeks(classID), week); err != nil {
		return nil, fmt.Errorf("add week: %w", err)
	}
	return week, nil
}

// AddItem appends a material or quiz to a week. Quiz settings are dropped
// for materials.
func (s *ContentService) AddItem(ctx context.Context, classID, weekID string, req *model.CreateItemRequest) (*model.WeekItem, error) {
	if err := s.mustExist(ctx, store.Paths.Week(classID, weekID), ErrWeekNotFound); err != nil {
		return nil, err
	}
	item := &model.WeekItem{
		Title:       req.Title,
		Content:     req.Content,
		PreviewText: req.PreviewText,
		Type:        req.Type,
		CreatedAt:   time.Now().UTC(),
	}
	if item.IsQuiz() {
		item.DurationMinutes = req.DurationMinutes
		item.AICorrection = req.AICorrection
		item.DetailLevel = req.DetailLevel
		if item.DetailLevel == "" {
			item.DetailLevel = model.DetailBrief
		}
	}
	if _, err := s.store.Append(ctx, store.Paths.Items(classID, weekID), item); err != nil {
		return nil, fmt.Errorf("add item: %w", err)
	}
	return item, nil
}

// UpdateItem changes the provided fields of an item.
func (s *ContentService) UpdateItem(ctx context.Context, ref model.ItemRef, req *model.UpdateItemRequest) (*model.WeekItem, error) {
	item, err := s.GetItem(ctx, ref)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.Content != nil {
		fields["content"] = *req.Content
	}
	if req.PreviewText != nil {
		fields["preview_text"] = *req.PreviewText
	}
	if item.IsQuiz() {
		if req.DurationMinutes != nil {
			fields["duration_minutes"] = *req.DurationMinutes
		}
		if req.AICorrection != nil {
			fields["ai_correction"] = *req.AICorrection
		}
		if req.DetailLevel != nil {
			fields["detail_level"] = *req.DetailLevel
		}
	}
	if err := s.store.Update(ctx, store.Paths.Item(ref), fields); err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	return s.GetItem(ctx, ref)
}

// GetItem returns an item with its questions, results and comments.
func (s *ContentService) GetItem(ctx context.Context, ref model.ItemRef) (*model.WeekItem, error) {
	var item model.WeekItem
	if err := s.decode(ctx, store.Paths.Item(ref), &item, ErrItemNotFound); err != nil {
		return nil, err
	}
	return &item, nil
}

// AddQuestion appends a question to a quiz item.
func (s *ContentService) AddQuestion(ctx context.Context, ref model.ItemRef, req *model.CreateQuestionRequest) (*model.Question, error) {
	if err := s.mustBeQuiz(ctx, ref); err != nil {
		return nil, err
	}
	q := &model.Question{
		Text:  req.Text,
		Type:  req.Type,
		Score: req.Score,
	}
	if q.Type == model.QuestionMultipleChoice {
		q.Options = req.Options
		q.CorrectAnswer = req.CorrectAnswer
	}
	if _, err := s.store.Append(ctx, store.Paths.Questions(ref), q); err != nil {
		return nil, fmt.Errorf("add question: %w", err)
	}
	return q, nil
}

// RemoveQuestion deletes a question from a quiz.
func (s *ContentService) RemoveQuestion(ctx context.Context, ref model.ItemRef, questionID string) error {
	path := store.Paths.Question(ref, questionID)
	if err := s.mustExist(ctx, path, ErrQuestionNotFound); err != nil {
		return err
	}
	return s.store.Remove(ctx, path)
}

// ListQuestions returns the quiz questions in creation order.
func (s *ContentService) ListQuestions(ctx context.Context, ref model.ItemRef) ([]model.Question, error) {
	snap, err := s.store.Read(ctx, store.Paths.Questions(ref))
	if err != nil {
		return nil, err
	}
	children, err := snap.Children()
	if err != nil {
		return nil, err
	}
	questions := make([]model.Question, 0, len(children))
	for _, child := range children {
		var q model.Question
		if err := child.Decode(&q); err != nil {
			return nil, fmt.Errorf("decode question %s: %w", child.Key(), err)
		}
		q.ID = child.Key()
		questions = append(questions, q)
	}
	return questions, nil
}

// ListResults returns every result of a quiz, earliest submission first.
func (s *ContentService) ListResults(ctx context.Context, ref model.ItemRef) ([]model.QuizResult, error) {
	snap, err := s.store.Read(ctx, store.Paths.Results(ref))
	if err != nil {
		return nil, err
	}
	children, err := snap.Children()
	if err != nil {
		return nil, err
	}
	results := make([]model.QuizResult, 0, len(children))
	for _, child := range children {
		var r model.QuizResult
		if err := child.Decode(&r); err != nil {
			return nil, fmt.Errorf("decode result %s: %w", child.Key(), err)
		}
		results = append(results, r)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].SubmittedAt.Before(results[j].SubmittedAt) })
	return results, nil
}

// GetResult returns a student's result for a quiz.
func (s *ContentService) GetResult(ctx context.Context, ref model.ItemRef, studentID string) (*model.QuizResult, error) {
	var r model.QuizResult
	if err := s.decode(ctx, store.Paths.Result(ref, studentID), &r, ErrResultNotFound); err != nil {
		return nil, err
	}
	return &r, nil
}

// StudentClassView returns a class as a joined student may see it: no
// questions or correct answers, no other students' results and no threads.
func (s *ContentService) StudentClassView(ctx context.Context, classID, studentID string) (*model.ClassSession, error) {
	joined, err := s.store.Read(ctx, store.Paths.JoinedClass(studentID, classID))
	if err != nil {
		return nil, err
	}
	if !joined.Exists() {
		return nil, ErrNotJoined
	}

	class, err := s.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	for wid, week := range class.Weeks {
		for iid, item := range week.Items {
			own, ok := item.Results[studentID]
			item.Questions = nil
			item.Comments = nil
			item.Results = nil
			if ok {
				item.Results = map[string]model.QuizResult{studentID: own}
			}
			week.Items[iid] = item
		}
		class.Weeks[wid] = week
	}
	return class, nil
}

func (s *ContentService) mustBeQuiz(ctx context.Context, ref model.ItemRef) error {
	snap, err := s.store.Read(ctx, store.Join(store.Paths.Item(ref), "type"))
	if err != nil {
		return err
	}
	var t model.ItemType
	if err := snap.Decode(&t); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrItemNotFound
		}
		return err
	}
	if t != model.ItemTypeQuiz {
		return ErrNotQuiz
	}
	return nil
}

func (s *ContentService) mustExist(ctx context.Context, path string, notFound error) error {
	keys, err := s.store.Keys(ctx, path)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return notFound
	}
	return nil
}

func (s *ContentService) decode(ctx context.Context, path string, v any, notFound error) error {
	snap, err := s.store.Read(ctx, path)
	if err != nil {
		return err
	}
	if !snap.Exists() {
		return notFound
	}
	return snap.Decode(v)
}
