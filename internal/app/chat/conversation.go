/*
Package chat keeps the transcript of a conversation with the remote assistant.

Asks may overlap: the user can submit again before the previous answer arrives. Replies are
buffered by request id and appended strictly in the order the questions were asked, and every
question gets exactly one reply, either the answer or a fallback text.
*/
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nyscmate/internal/app/notify"
	"nyscmate/internal/app/pipeline"
	"nyscmate/internal/pkg/errs"
	"nyscmate/internal/pkg/logx"
	"nyscmate/internal/pkg/randx"
)

// Origin says who authored a message.
type Origin string

const (
	OriginUser      Origin = "user"
	OriginAssistant Origin = "assistant"
)

// Message is one transcript entry.
type Message struct {
	ID        string
	Origin    Origin
	Text      string
	CreatedAt time.Time

	// RequestID links a question and its reply.
	RequestID uint64

	// Fallback marks a synthetic reply standing in for a failed ask.
	Fallback bool
}

// AskAPI is the remote assistant.
type AskAPI interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Conversation is an append-only transcript, cleared wholesale by Reset.
type Conversation struct {
	api  AskAPI
	pipe *pipeline.Pipeline
	sink notify.Sink

	mu        sync.Mutex
	gen       uint64
	genCtx    context.Context
	genCancel context.CancelFunc
	messages  []Message

	// order holds the request ids of unanswered questions, oldest first.
	order []uint64

	// ready buffers replies that arrived ahead of an older question.
	ready map[uint64]reply
	turns map[uint64]*Turn

	// emitMu is taken before mu is released so listeners see appends in transcript order.
	emitMu    sync.Mutex
	listeners map[int]func(Message)
	nextLis   int

	// bind derives each ask's context, e.g. joining it to the authenticated scope.
	bind func(context.Context) (context.Context, context.CancelFunc)

	wg     sync.WaitGroup
	logger zerolog.Logger
	now    func() time.Time
}

type reply struct {
	msg Message
	err *errs.CustomError
}

// NewConversation returns an empty conversation.
func NewConversation(api AskAPI, pipe *pipeline.Pipeline, sink notify.Sink) *Conversation {
	if sink == nil {
		sink = notify.Discard
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Conversation{
		api:       api,
		pipe:      pipe,
		sink:      sink,
		genCtx:    ctx,
		genCancel: cancel,
		ready:     make(map[uint64]reply),
		turns:     make(map[uint64]*Turn),
		listeners: make(map[int]func(Message)),
		bind:      context.WithCancel,
		logger:    logx.Component("chat"),
		now:       time.Now,
	}
}

// BindScope sets how each ask's context is derived from the caller's. Call it before the
// first Ask.
func (c *Conversation) BindScope(fn func(context.Context) (context.Context, context.CancelFunc)) {
	c.mu.Lock()
	c.bind = fn
	c.mu.Unlock()
}

// Turn is one question awaiting its reply.
type Turn struct {
	Question Message

	done  chan struct{}
	reply Message
	err   *errs.CustomError
}

// Done is closed once the reply has been appended, or the turn was discarded by Reset.
func (t *Turn) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the reply is appended and returns it. The error is the ask's failure, if any;
// a failed ask still yields its fallback reply. A turn discarded by Reset returns ErrCanceled.
func (t *Turn) Wait(ctx context.Context) (Message, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		return Message{}, errs.Wrap(errs.ErrCanceled, ctx.Err())
	}
	if t.err != nil {
		return t.reply, t.err
	}
	return t.reply, nil
}

// Ask appends the question to the transcript before anything is sent, then issues it.
// The returned Turn resolves when the reply takes its place in the transcript.
func (c *Conversation) Ask(ctx context.Context, question string) (*Turn, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errs.NewError(errs.ErrInvalidParams)
	}

	ticket := c.pipe.Reserve(pipeline.KindAsk)

	c.mu.Lock()
	gen, genCtx, bind := c.gen, c.genCtx, c.bind
	q := Message{
		ID:        randx.MessageID(),
		Origin:    OriginUser,
		Text:      question,
		CreatedAt: c.now(),
		RequestID: ticket.ID(),
	}
	turn := &Turn{Question: q, done: make(chan struct{})}
	c.messages = append(c.messages, q)
	c.order = append(c.order, q.RequestID)
	c.turns[q.RequestID] = turn
	c.wg.Add(1)
	c.emitLocked([]Message{q})

	askCtx, cancel := bind(ctx)
	stop := context.AfterFunc(genCtx, cancel)

	go func() {
		defer c.wg.Done()
		defer cancel()
		defer stop()

		out := pipeline.WithFallback(
			pipeline.Run(askCtx, c.pipe, ticket, func(ctx context.Context) (string, error) {
				return c.api.Ask(ctx, question)
			}),
			FallbackText,
		)

		a := Message{
			ID:        randx.MessageID(),
			Origin:    OriginAssistant,
			Text:      out.Value,
			CreatedAt: c.now(),
			RequestID: q.RequestID,
			Fallback:  out.Fallback,
		}
		if out.Fallback {
			c.logger.Warn().Uint64("request_id", q.RequestID).Int("code", out.Err.Code).Msg("Ask failed, using fallback reply")
		}
		c.deliver(gen, reply{msg: a, err: out.Err})
	}()

	return turn, nil
}

// deliver buffers r and flushes every reply that is now next in line.
func (c *Conversation) deliver(gen uint64, r reply) {
	c.mu.Lock()
	if gen != c.gen {
		// The transcript this reply belonged to is gone.
		c.mu.Unlock()
		return
	}

	c.ready[r.msg.RequestID] = r

	var flushed []Message
	for len(c.order) > 0 {
		next, ok := c.ready[c.order[0]]
		if !ok {
			break
		}
		id := c.order[0]
		c.order = c.order[1:]
		delete(c.ready, id)

		c.messages = append(c.messages, next.msg)
		flushed = append(flushed, next.msg)

		if t, ok := c.turns[id]; ok {
			delete(c.turns, id)
			t.reply = next.msg
			t.err = next.err
			close(t.done)
		}
	}

	if len(flushed) == 0 {
		c.mu.Unlock()
		return
	}
	c.emitLocked(flushed)
}

// emitLocked hands msgs to listeners in order. Caller holds mu; it is released here.
func (c *Conversation) emitLocked(msgs []Message) {
	fns := make([]func(Message), 0, len(c.listeners))
	for i := 0; i < c.nextLis; i++ {
		if fn, ok := c.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}

	c.emitMu.Lock()
	c.mu.Unlock()
	defer c.emitMu.Unlock()

	for _, m := range msgs {
		for _, fn := range fns {
			fn(m)
		}
	}
}

// OnMessage registers fn for every message appended from now on.
// fn must not call back into the conversation.
func (c *Conversation) OnMessage(fn func(Message)) (cancel func()) {
	c.mu.Lock()
	id := c.nextLis
	c.nextLis++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

// Pending returns how many questions are still waiting for a reply.
func (c *Conversation) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Reset starts a new chat: the transcript is cleared, in-flight asks are canceled and their
// replies, whenever they arrive, are discarded.
func (c *Conversation) Reset() {
	c.reset()
	notify.Emit(c.sink, notify.LevelInfo, "chat", "Started a new chat.")
}

// Discard is Reset without the notification, used when the session ends.
func (c *Conversation) Discard() {
	c.reset()
}

func (c *Conversation) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.genCancel()
	c.gen++
	c.genCtx, c.genCancel = context.WithCancel(context.Background())

	for id, t := range c.turns {
		t.err = errs.NewError(errs.ErrCanceled)
		close(t.done)
		delete(c.turns, id)
	}
	c.messages = nil
	c.order = nil
	c.ready = make(map[uint64]reply)
}

// Close cancels in-flight asks and waits for them to finish.
func (c *Conversation) Close() {
	c.mu.Lock()
	c.genCancel()
	c.mu.Unlock()
	c.wg.Wait()
}
