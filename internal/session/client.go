package session

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/roach88/txflow/internal/ir"
)

// MaxMessageLength bounds message content, in bytes.
const MaxMessageLength = 5000

// Client is the marketplace backend a session talks to.
//
// PerformTransition and SubmitReview return the whole refreshed
// transaction; the session replaces its copy rather than patching it.
type Client interface {
	FetchTransaction(ctx context.Context, txID string) (*ir.Transaction, error)
	PerformTransition(ctx context.Context, txID string, name ir.TransitionID, actor ir.Actor, params map[string]any) (*ir.Transaction, error)

	// SendMessage returns the message as stored, with the server's id and
	// timestamp.
	SendMessage(ctx context.Context, txID, senderID, content string) (ir.Message, error)

	// FetchOlderMessages returns one page of messages, oldest first.
	// Page 1 is the newest page.
	FetchOlderMessages(ctx context.Context, txID string, page int) (MessagePage, error)

	SubmitReview(ctx context.Context, txID string, name ir.TransitionID, actor ir.Actor, review ReviewInput) (*ir.Transaction, error)
}

// MessagePage is one page of a transaction's messages.
type MessagePage struct {
	Messages []ir.Message `json:"messages"`
	HasMore  bool         `json:"has_more"`
}

// ReviewInput is the review form payload.
type ReviewInput struct {
	Rating  int    `json:"rating"`
	Content string `json:"content"`
}

// Validate checks the rating is 1..5 and the content non-empty.
func (r ReviewInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Rating, validation.Required, validation.Min(1), validation.Max(5)),
		validation.Field(&r.Content, validation.Required, validation.Length(1, MaxMessageLength)),
	)
}

// ValidateMessage checks message content before it is sent. Whitespace
// alone does not count as content.
func ValidateMessage(content string) error {
	return validation.Validate(strings.TrimSpace(content), validation.Required, validation.Length(1, MaxMessageLength))
}
