package websocket

import "github.com/arstate/FAFA-BIMBEL/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSubscribeThread   Action = "subscribe_thread"
	ActionUnsubscribeThread Action = "unsubscribe_thread"
	ActionSendComment       Action = "send_comment"
	ActionQuizAttach        Action = "quiz_attach"
	ActionQuizAnswer        Action = "quiz_answer"
	ActionQuizSubmit        Action = "quiz_submit"
	ActionQuizLeave         Action = "quiz_leave"
	ActionPing              Action = "ping"
)

// RequestPayload is the single client message shape. Which fields are read
// depends on Action.
type RequestPayload struct {
	Action  Action `json:"action"`
	ClassID string `json:"class_id"`
	WeekID  string `json:"week_id"`
	ItemID  string `json:"item_id"`
	// StudentID selects the thread owner. Students may leave it empty.
	StudentID  string `json:"student_id,omitempty"`
	QuestionID string `json:"q_id,omitempty"`
	Answer     string `json:"ans,omitempty"`
	Text       string `json:"text,omitempty"`
}

// Item returns the item the payload addresses.
func (p *RequestPayload) Item() model.ItemRef {
	return model.ItemRef{ClassID: p.ClassID, WeekID: p.WeekID, ItemID: p.ItemID}
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError       Event = "error"
	EventPong        Event = "pong"
	EventComments    Event = "comments"
	EventCommentSent Event = "comment_sent"
	EventQuizState   Event = "quiz_state"
)

// CommentsResponse carries the full, ordered history of one thread. It is
// sent on subscribe and after every change.
type CommentsResponse struct {
	Event    Event           `json:"event"`
	Thread   model.ThreadRef `json:"thread"`
	Comments []model.Comment `json:"comments"`
}

type CommentSentResponse struct {
	Event   Event         `json:"event"`
	Comment model.Comment `json:"comment"`
}

type QuizStateResponse struct {
	Event Event                  `json:"event"`
	State model.QuizSessionState `json:"state"`
}

type ErrorResponse struct {
	Event  Event  `json:"event"`
	Action Action `json:"action,omitempty"`
	Code   string `json:"code,omitempty"`
	Error  string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
