package model

import "time"

// Comment is one message in a private per-item thread.
type Comment struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Role       Role      `json:"role"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

// AssignID implements store.Identifiable.
func (c *Comment) AssignID(id string) { c.ID = id }

// ThreadRef identifies the thread between one student and the admin on one item.
type ThreadRef struct {
	ItemRef
	StudentID string `json:"student_id"`
}

// SendCommentRequest is the payload for posting to a thread.
type SendCommentRequest struct {
	Text string `json:"text" binding:"required,notblank,max=4000"`
}
