package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/txflow/internal/engine"
	"github.com/roach88/txflow/internal/ir"
	"github.com/roach88/txflow/internal/process"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeClient applies transitions in memory without validation beyond
// what a test asks for.
type fakeClient struct {
	mu sync.Mutex

	tx    *ir.Transaction
	pages map[int]MessagePage

	performErr error
	sendErr    error
	reviewErr  error

	performed []ir.TransitionID
	sent      []string
	reviews   []ReviewInput
	fetches   []int

	// When gate is set, PerformTransition signals entered and waits.
	gate    chan struct{}
	entered chan struct{}

	// msgGate and msgEntered do the same for SendMessage.
	msgGate    chan struct{}
	msgEntered chan struct{}
}

// serverTime is when the fake server stores the n-th sent message.
func serverTime(n int) time.Time {
	return base.Add(time.Hour + time.Duration(n)*time.Second)
}

func newFakeClient(tx *ir.Transaction) *fakeClient {
	return &fakeClient{tx: tx, pages: map[int]MessagePage{}}
}

func (c *fakeClient) FetchTransaction(_ context.Context, txID string) (*ir.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx == nil || c.tx.ID != txID {
		return nil, fmt.Errorf("transaction %s not found", txID)
	}
	return clone(c.tx), nil
}

func (c *fakeClient) PerformTransition(_ context.Context, txID string, name ir.TransitionID, actor ir.Actor, _ map[string]any) (*ir.Transaction, error) {
	if c.gate != nil {
		c.entered <- struct{}{}
		<-c.gate
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.performed = append(c.performed, name)
	if c.performErr != nil {
		return nil, c.performErr
	}
	return c.appendLocked(name, actor), nil
}

func (c *fakeClient) SendMessage(_ context.Context, _ string, senderID string, content string) (ir.Message, error) {
	if c.msgGate != nil {
		c.msgEntered <- struct{}{}
		<-c.msgGate
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return ir.Message{}, c.sendErr
	}
	c.sent = append(c.sent, content)
	return ir.Message{
		ID:        fmt.Sprintf("msg-%d", len(c.sent)),
		SenderID:  senderID,
		Content:   content,
		CreatedAt: serverTime(len(c.sent)),
	}, nil
}

func (c *fakeClient) FetchOlderMessages(_ context.Context, _ string, page int) (MessagePage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetches = append(c.fetches, page)
	return c.pages[page], nil
}

func (c *fakeClient) SubmitReview(_ context.Context, _ string, name ir.TransitionID, actor ir.Actor, review ReviewInput) (*ir.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reviewErr != nil {
		return nil, c.reviewErr
	}
	c.reviews = append(c.reviews, review)
	c.performed = append(c.performed, name)
	return c.appendLocked(name, actor), nil
}

func (c *fakeClient) appendLocked(name ir.TransitionID, actor ir.Actor) *ir.Transaction {
	next := clone(c.tx)
	next.Transitions = append(next.Transitions, ir.Transition{
		Name: name,
		By:   actor,
		At:   base.Add(time.Duration(len(next.Transitions)) * time.Minute),
	})
	c.tx = next
	return clone(next)
}

func clone(tx *ir.Transaction) *ir.Transaction {
	out := *tx
	out.Transitions = append([]ir.Transition(nil), tx.Transitions...)
	return &out
}

func registry() *process.Registry {
	reg, err := process.Builtin()
	if err != nil {
		panic(err)
	}
	return reg
}

// transaction builds a transaction on processName whose log is names,
// one minute apart.
func transaction(processName string, names ...string) *ir.Transaction {
	tx := &ir.Transaction{
		ID:          "tx-1",
		ProcessName: processName,
		Customer:    ir.Party{ID: "customer-1"},
		Provider:    ir.Party{ID: "provider-1"},
	}
	for i, n := range names {
		tx.Transitions = append(tx.Transitions, ir.Transition{
			Name: ir.TransitionID("transition/" + n),
			By:   ir.ActorCustomer,
			At:   base.Add(time.Duration(i) * time.Minute),
		})
	}
	return tx
}

var _ engine.Performer = (*Session)(nil)
