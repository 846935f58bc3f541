package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/arstate/FAFA-BIMBEL/internal/model"
	"github.com/arstate/FAFA-BIMBEL/internal/store"
	"github.com/rs/zerolog"
)

// User errors.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUsernameTaken     = errors.New("username already taken")
	ErrInvalidUsername   = errors.New("invalid username")
	ErrInvalidAccessCode = errors.New("invalid access code")
)

// userRecord is the stored form of a user, including the password hash that
// model.User never serializes.
type userRecord struct {
	model.User
	PasswordHash string `json:"password_hash,omitempty"`
}

func (r *userRecord) toUser() *model.User {
	u := r.User
	u.PasswordHash = r.PasswordHash
	return &u
}

// UserService manages student accounts and class membership.
type UserService struct {
	store store.Store
	auth  *AuthService
	log   zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(s store.Store, auth *AuthService, log zerolog.Logger) *UserService {
	return &UserService{
		store: s,
		auth:  auth,
		log:   log.With().Str("component", "user_service").Logger(),
	}
}

// NormalizeUsername is the canonical form used for the uniqueness index.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// CreateStudent creates a student account. The username index slot is
// claimed first so two concurrent creations cannot both succeed.
func (s *UserService) CreateStudent(ctx context.Context, req *model.CreateStudentRequest) (*model.User, error) {
	username := NormalizeUsername(req.Username)
	if username == "" || store.ValidatePath(store.Paths.Username(username)) != nil {
		return nil, ErrInvalidUsername
	}

	id, err := store.NewID()
	if err != nil {
		return nil, err
	}
	ok, err := s.store.WriteIfAbsent(ctx, store.Paths.Username(username), id)
	if err != nil {
		return nil, fmt.Errorf("reserve username: %w", err)
	}
	if !ok {
		return nil, ErrUsernameTaken
	}

	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		s.release(ctx, username)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	rec := userRecord{
		User: model.User{
			ID:        id,
			Username:  username,
			Name:      strings.TrimSpace(req.Name),
			Role:      model.RoleStudent,
			CreatedAt: time.Now().UTC(),
		},
		PasswordHash: hash,
	}
	if err := s.store.Write(ctx, store.Paths.User(id), rec); err != nil {
		s.release(ctx, username)
		return nil, fmt.Errorf("create student: %w", err)
	}

	s.log.Info().Str("user_id", id).Str("username", username).Msg("Student created")
	return rec.toUser(), nil
}

func (s *UserService) release(ctx context.Context, username string) {
	if err := s.store.Remove(ctx, store.Paths.Username(username)); err != nil {
		s.log.Error().Err(err).Str("username", username).Msg("failed to release username")
	}
}

// GetByID returns a user including the password hash.
func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	snap, err := s.store.Read(ctx, store.Paths.User(id))
	if err != nil {
		if errors.Is(err, store.ErrInvalidPath) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !snap.Exists() {
		return nil, ErrUserNotFound
	}
	var rec userRecord
	if err := snap.Decode(&rec); err != nil {
		return nil, err
	}
	if rec.Username == "" {
		// Only presence fields left behind.
		return nil, ErrUserNotFound
	}
	return rec.toUser(), nil
}

// GetByUsername resolves a username through the index.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	username = NormalizeUsername(username)
	if username == "" || store.ValidatePath(store.Paths.Username(username)) != nil {
		return nil, ErrUserNotFound
	}
	snap, err := s.store.Read(ctx, store.Paths.Username(username))
	if err != nil {
		return nil, err
	}
	var id string
	if err := snap.Decode(&id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// List returns every student ordered by username. Password hashes are not
// included.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	snap, err := s.store.Read(ctx, store.Paths.Users())
	if err != nil {
		return nil, err
	}
	children, err := snap.Children()
	if err != nil {
		return nil, err
	}
	users := make([]model.User, 0, len(children))
	for _, child := range children {
		var u model.User
		if err := child.Decode(&u); err != nil {
			s.log.Warn().Err(err).Str("path", child.Path).Msg("skipping undecodable user")
			continue
		}
		if u.Username == "" {
			continue
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

// Delete removes a student account and frees its username. Results and
// comments the student left stay in place.
func (s *UserService) Delete(ctx context.Context, id string) error {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Remove(ctx, store.Paths.User(id)); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.release(ctx, u.Username)
	s.log.Info().Str("user_id", id).Msg("Student deleted")
	return nil
}

// JoinClass adds the class owning code to the student's joined classes.
// Nothing is written when the code does not resolve to a class.
func (s *UserService) JoinClass(ctx context.Context, userID, accessCode string) (*model.ClassSession, error) {
	code := strings.ToUpper(strings.TrimSpace(accessCode))
	if code == "" || store.ValidatePath(store.Paths.AccessCode(code)) != nil {
		return nil, ErrInvalidAccessCode
	}

	snap, err := s.store.Read(ctx, store.Paths.AccessCode(code))
	if err != nil {
		return nil, err
	}
	var classID string
	if err := snap.Decode(&classID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidAccessCode
		}
		return nil, err
	}

	var class model.ClassSession
	classSnap, err := s.store.Read(ctx, store.Paths.Class(classID))
	if err != nil {
		return nil, err
	}
	if err := classSnap.Decode(&class); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.log.Warn().Str("code", code).Msg("access code points to a missing class")
			return nil, ErrInvalidAccessCode
		}
		return nil, err
	}

	if _, err := s.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.store.Write(ctx, store.Paths.JoinedClass(userID, classID), true); err != nil {
		return nil, fmt.Errorf("join class: %w", err)
	}
	class.Weeks = nil
	return &class, nil
}

// MyClasses returns summaries of the classes a student has joined.
func (s *UserService) MyClasses(ctx context.Context, userID string) ([]model.ClassSession, error) {
	ids, err := s.store.Keys(ctx, store.Join(store.Paths.User(userID), "joined_classes"))
	if err != nil {
		return nil, err
	}
	classes := make([]model.ClassSession, 0, len(ids))
	for _, id := range ids {
		snap, err := s.store.Read(ctx, store.Paths.Class(id))
		if err != nil {
			return nil, err
		}
		var c model.ClassSession
		if err := snap.Decode(&c); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		c.Weeks = nil
		classes = append(classes, c)
	}
	sort.SliceStable(classes, func(i, j int) bool { return classes[i].CreatedAt.Before(classes[j].CreatedAt) })
	return classes, nil
}

// HasJoined reports whether the student joined the class.
func (s *UserService) HasJoined(ctx context.Context, userID, classID string) (bool, error) {
	path := store.Paths.JoinedClass(userID, classID)
	if store.ValidatePath(path) != nil {
		return false, nil
	}
	snap, err := s.store.Read(ctx, path)
	if err != nil {
		return false, err
	}
	var joined bool
	if err := snap.Decode(&joined); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return joined, nil
}
