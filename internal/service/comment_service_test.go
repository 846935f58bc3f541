package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/arstate/FAFA-BIMBEL/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextComments(t *testing.T, sub *ThreadSubscription) []model.Comment {
	t.Helper()
	select {
	case cs, ok := <-sub.Updates():
		require.True(t, ok, "subscription closed")
		return cs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for comments")
		return nil
	}
}

func TestCommentService_SendAndSubscribeInOrder(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil, nil)
	student := e.student(t, "budi")
	ref := e.seedQuiz(t, 5, false)
	thread := model.ThreadRef{ItemRef: ref, StudentID: student.ID}

	sub, err := e.comments.SubscribeThread(ctx, thread, admin)
	require.NoError(t, err)
	defer sub.Close()
	assert.Empty(t, nextComments(t, sub))

	_, err = e.comments.Send(ctx, thread, student, "Pak, soal nomor 2 kurang jelas")
	require.NoError(t, err)
	_, err = e.comments.Send(ctx, thread, admin, "  Maksudnya opsi B.  ")
	require.NoError(t, err)

	nextComments(t, sub)
	got := nextComments(t, sub)
	require.Len(t, got, 2)

	assert.Equal(t, student.ID, got[0].SenderID)
	assert.Equal(t, model.RoleStudent, got[0].Role)
	assert.Equal(t, model.AdminID, got[1].SenderID)
	assert.Equal(t, "Maksudnya opsi B.", got[1].Text)
	assert.True(t, got[0].ID < got[1].ID)
	assert.False(t, got[1].Timestamp.Before(got[0].Timestamp))
}

func TestCommentService_Authorization(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil, nil)
	budi := e.student(t, "budi")
	sari := e.student(t, "sari")
	ref := e.seedQuiz(t, 5, false)
	budiThread := model.ThreadRef{ItemRef: ref, StudentID: budi.ID}

	_, err := e.comments.Send(ctx, budiThread, sari, "halo")
	assert.ErrorIs(t, err, ErrThreadForbidden)

	_, err = e.comments.SubscribeThread(ctx, budiThread, sari)
	assert.ErrorIs(t, err, ErrThreadForbidden)

	_, err = e.comments.ListThreads(ctx, ref, budi)
	assert.ErrorIs(t, err, ErrThreadForbidden)

	_, err = e.comments.History(ctx, budiThread, budi)
	assert.NoError(t, err)
}

func TestCommentService_Validation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil, nil)
	budi := e.student(t, "budi")
	ref := e.seedQuiz(t, 5, false)
	thread := model.ThreadRef{ItemRef: ref, StudentID: budi.ID}

	_, err := e.comments.Send(ctx, thread, budi, " \n ")
	assert.ErrorIs(t, err, ErrEmptyComment)

	_, err = e.comments.Send(ctx, thread, budi, strings.Repeat("a", MaxCommentLength+1))
	assert.ErrorIs(t, err, ErrCommentTooLong)

	missing := model.ThreadRef{ItemRef: model.ItemRef{ClassID: ref.ClassID, WeekID: ref.WeekID, ItemID: "nope"}, StudentID: budi.ID}
	_, err = e.comments.Send(ctx, missing, budi, "halo")
	assert.ErrorIs(t, err, ErrItemNotFound)

	history, err := e.comments.History(ctx, thread, admin)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestCommentService_ListThreads(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil, nil)
	budi := e.student(t, "budi")
	sari := e.student(t, "sari")
	ref := e.seedQuiz(t, 5, false)

	for _, s := range []model.Actor{budi, sari, budi} {
		_, err := e.comments.Send(ctx, model.ThreadRef{ItemRef: ref, StudentID: s.ID}, s, "pertanyaan")
		require.NoError(t, err)
	}

	ids, err := e.comments.ListThreads(ctx, ref, admin)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{budi.ID, sari.ID}, ids)
}

func TestCommentService_SubscriptionReleasedOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := newEnv(t, nil, nil)
	budi := e.student(t, "budi")
	ref := e.seedQuiz(t, 5, false)
	thread := model.ThreadRef{ItemRef: ref, StudentID: budi.ID}

	sub, err := e.comments.SubscribeThread(ctx, thread, budi)
	require.NoError(t, err)
	nextComments(t, sub)

	cancel()
	select {
	case _, ok := <-sub.Updates():
		for ok {
			_, ok = <-sub.Updates()
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not released")
	}
}
