package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arstate/FAFA-BIMBEL/internal/config"
	"github.com/arstate/FAFA-BIMBEL/internal/feedback"
	"github.com/arstate/FAFA-BIMBEL/internal/model"
	"github.com/arstate/FAFA-BIMBEL/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeTicker struct {
	c        chan time.Time
	stopped  chan struct{}
	stopOnce sync.Once
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }

func (t *fakeTicker) Stop() { t.stopOnce.Do(func() { close(t.stopped) }) }

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{c: make(chan time.Time), stopped: make(chan struct{})}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) last(t *testing.T) *fakeTicker {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.tickers, "no ticker created")
	return c.tickers[len(c.tickers)-1]
}

// tick advances the clock one second per tick and hands each tick to the
// ticker. It returns how many ticks were consumed before the ticker stopped.
func (c *fakeClock) tick(t *testing.T, tk *fakeTicker, n int) int {
	t.Helper()
	for i := 0; i < n; i++ {
		c.mu.Lock()
		c.now = c.now.Add(time.Second)
		now := c.now
		c.mu.Unlock()

		select {
		case tk.c <- now:
		case <-tk.stopped:
			return i
		case <-time.After(2 * time.Second):
			t.Fatalf("countdown did not consume tick %d", i)
		}
	}
	return n
}

// flakyStore fails the next failWrites conditional writes.
type flakyStore struct {
	store.Store
	mu         sync.Mutex
	failWrites int
}

func (f *flakyStore) WriteIfAbsent(ctx context.Context, path string, value any) (bool, error) {
	f.mu.Lock()
	if f.failWrites > 0 {
		f.failWrites--
		f.mu.Unlock()
		return false, errors.New("connection reset")
	}
	f.mu.Unlock()
	return f.Store.WriteIfAbsent(ctx, path, value)
}

// countingAssessor returns fixed feedback and can block until released.
type countingAssessor struct {
	mu      sync.Mutex
	calls   int
	reply   map[string]string
	entered chan struct{}
	release chan struct{}
}

func (a *countingAssessor) Assess(ctx context.Context, _ []model.Question, _ map[string]string, _ model.DetailLevel) map[string]string {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	if a.entered != nil {
		a.entered <- struct{}{}
	}
	if a.release != nil {
		<-a.release
	}
	return a.reply
}

func (a *countingAssessor) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type env struct {
	store    store.Store
	cfg      *config.Config
	auth     *AuthService
	content  *ContentService
	users    *UserService
	settings *SettingService
	comments *CommentService
	quiz     *QuizSessionService
	clock    *fakeClock
}

func newEnv(t *testing.T, s store.Store, assessor feedback.Assessor) *env {
	t.Helper()
	if s == nil {
		s = store.NewMemoryStore(zerolog.Nop())
	}
	log := zerolog.Nop()
	cfg := &config.Config{
		JWTSecret:           "test-secret",
		JWTExpiry:           time.Hour,
		BcryptCost:          4,
		AdminPIN:            "1509",
		QuizDefaultDuration: 10,
	}
	e := &env{store: s, cfg: cfg, clock: newFakeClock()}
	e.auth = NewAuthService(cfg)
	e.content = NewContentService(s, log)
	e.users = NewUserService(s, e.auth, log)
	e.settings = NewSettingService(s, log)
	e.comments = NewCommentService(s, e.content, log)
	e.quiz = NewQuizSessionService(s, e.content, assessor, cfg.QuizDefaultDuration, log)
	e.quiz.clock = e.clock
	t.Cleanup(e.quiz.StopAll)
	return e
}

// seedQuiz creates a class, week and quiz item with the given questions.
func (e *env) seedQuiz(t *testing.T, duration int, ai bool, questions ...model.CreateQuestionRequest) model.ItemRef {
	t.Helper()
	ctx := context.Background()

	class, err := e.content.CreateClass(ctx, &model.CreateClassRequest{Name: "Kelas 10A"})
	require.NoError(t, err)
	week, err := e.content.AddWeek(ctx, class.ID, &model.CreateWeekRequest{Title: "Minggu 1"})
	require.NoError(t, err)
	item, err := e.content.AddItem(ctx, class.ID, week.ID, &model.CreateItemRequest{
		Title:           "Kuis 1",
		Type:            model.ItemTypeQuiz,
		DurationMinutes: duration,
		AICorrection:    ai,
	})
	require.NoError(t, err)

	ref := model.ItemRef{ClassID: class.ID, WeekID: week.ID, ItemID: item.ID}
	for i := range questions {
		_, err := e.content.AddQuestion(ctx, ref, &questions[i])
		require.NoError(t, err)
	}
	return ref
}

func (e *env) student(t *testing.T, username string) model.Actor {
	t.Helper()
	u, err := e.users.CreateStudent(context.Background(), &model.CreateStudentRequest{
		Username: username, Name: username, Password: "rahasia123",
	})
	require.NoError(t, err)
	return model.Actor{ID: u.ID, Name: u.Name, Role: model.RoleStudent}
}

var admin = model.Actor{ID: model.AdminID, Name: model.AdminName, Role: model.RoleAdmin}

func mcQuestion(correct string) model.CreateQuestionRequest {
	return model.CreateQuestionRequest{
		Text:          "Pilih jawaban",
		Type:          model.QuestionMultipleChoice,
		Options:       []string{"A", "B", "C"},
		CorrectAnswer: correct,
		Score:         10,
	}
}

func essayQuestion() model.CreateQuestionRequest {
	return model.CreateQuestionRequest{Text: "Jelaskan", Type: model.QuestionEssay, Score: 10}
}

func (e *env) results(t *testing.T, ref model.ItemRef) []model.QuizResult {
	t.Helper()
	rs, err := e.content.ListResults(context.Background(), ref)
	require.NoError(t, err)
	return rs
}
