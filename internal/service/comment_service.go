package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/arstate/FAFA-BIMBEL/internal/model"
	"github.com/arstate/FAFA-BIMBEL/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MaxCommentLength is the longest comment text accepted, in characters.
const MaxCommentLength = 4000

// Comment errors.
var (
	ErrEmptyComment    = errors.New("comment text is empty")
	ErrCommentTooLong  = errors.New("comment text is too long")
	ErrThreadForbidden = errors.New("thread belongs to another student")
)

// CommentService manages the private per-item threads between each student
// and the admin.
type CommentService struct {
	store   store.Store
	content *ContentService
	log     zerolog.Logger
}

// NewCommentService creates a new CommentService.
func NewCommentService(s store.Store, content *ContentService, log zerolog.Logger) *CommentService {
	return &CommentService{
		store:   s,
		content: content,
		log:     log.With().Str("component", "comment_service").Logger(),
	}
}

// Send appends a comment to a thread. The comment id and timestamp come from
// the same time-ordered id, so id order and timestamp order agree.
func (s *CommentService) Send(ctx context.Context, thread model.ThreadRef, actor model.Actor, text string) (*model.Comment, error) {
	if err := authorizeThread(thread, actor); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return nil, ErrCommentTooLong
	}
	if _, err := s.content.GetItem(ctx, thread.ItemRef); err != nil {
		return nil, err
	}

	id, err := store.NewID()
	if err != nil {
		return nil, err
	}
	comment := &model.Comment{
		ID:         id,
		SenderID:   actor.ID,
		SenderName: actor.Name,
		Role:       actor.Role,
		Text:       text,
		Timestamp:  idTime(id),
	}
	if err := s.store.Write(ctx, store.Join(store.Paths.Thread(thread), id), comment); err != nil {
		return nil, fmt.Errorf("send comment: %w", err)
	}
	return comment, nil
}

// History returns the thread's comments in append order.
func (s *CommentService) History(ctx context.Context, thread model.ThreadRef, actor model.Actor) ([]model.Comment, error) {
	if err := authorizeThread(thread, actor); err != nil {
		return nil, err
	}
	snap, err := s.store.Read(ctx, store.Paths.Thread(thread))
	if err != nil {
		return nil, err
	}
	return decodeThread(snap)
}

// ListThreads returns the ids of students who have a thread on the item.
// Only the admin may list threads.
func (s *CommentService) ListThreads(ctx context.Context, item model.ItemRef, actor model.Actor) ([]string, error) {
	if !actor.IsAdmin() {
		return nil, ErrThreadForbidden
	}
	return s.store.Keys(ctx, store.Paths.Threads(item))
}

// ThreadSubscription streams the full ordered comment list of one thread.
type ThreadSubscription struct {
	Thread model.ThreadRef

	sub *store.Subscription
	out chan []model.Comment
}

// Updates yields the ordered comment list after every change. It is closed
// once the subscription ends.
func (t *ThreadSubscription) Updates() <-chan []model.Comment { return t.out }

// Close releases the subscription.
func (t *ThreadSubscription) Close() { t.sub.Close() }

// SubscribeThread delivers the current comment list immediately and again
// on every append. It ends when ctx is done or Close is called.
func (s *CommentService) SubscribeThread(ctx context.Context, thread model.ThreadRef, actor model.Actor) (*ThreadSubscription, error) {
	if err := authorizeThread(thread, actor); err != nil {
		return nil, err
	}
	sub, err := s.store.Subscribe(ctx, store.Paths.Thread(thread))
	if err != nil {
		return nil, err
	}

	ts := &ThreadSubscription{
		Thread: thread,
		sub:    sub,
		out:    make(chan []model.Comment),
	}
	go func() {
		defer close(ts.out)
		for snap := range sub.Updates() {
			comments, err := decodeThread(snap)
			if err != nil {
				s.log.Error().Err(err).Str("path", snap.Path).Msg("failed to decode thread")
				continue
			}
			select {
			case ts.out <- comments:
			case <-ctx.Done():
				sub.Close()
				return
			}
		}
	}()
	return ts, nil
}

func decodeThread(snap store.Snapshot) ([]model.Comment, error) {
	children, err := snap.Children()
	if err != nil {
		return nil, err
	}
	comments := make([]model.Comment, 0, len(children))
	for _, child := range children {
		var c model.Comment
		if err := child.Decode(&c); err != nil {
			return nil, fmt.Errorf("decode comment %s: %w", child.Key(), err)
		}
		c.ID = child.Key()
		comments = append(comments, c)
	}
	return comments, nil
}

func authorizeThread(thread model.ThreadRef, actor model.Actor) error {
	if thread.StudentID == "" || thread.StudentID == model.AdminID {
		return ErrThreadForbidden
	}
	if actor.IsAdmin() || actor.ID == thread.StudentID {
		return nil
	}
	return ErrThreadForbidden
}

// idTime extracts the creation time embedded in a time-ordered id.
func idTime(id string) time.Time {
	u, err := uuid.Parse(id)
	if err != nil || u.Version() != 7 {
		return time.Now().UTC()
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec).UTC()
}
