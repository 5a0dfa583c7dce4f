package messenger

import (
	"context"
	"fmt"
	"sync"
)

type Sent struct {
	Ref Ref
	Message
}

type Cleared struct {
	ChatID int64
	Ref    Ref
}

// Recorder is an in-memory Messenger. Failures can be injected per chat.
type Recorder struct {
	mu        sync.Mutex
	seq       int
	sent      []Sent
	cleared   []Cleared
	failChats map[int64]error
	failClear error
}

var _ Messenger = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{failChats: map[int64]error{}}
}

func (r *Recorder) Send(_ context.Context, m Message) (Ref, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failChats[m.ChatID]; err != nil {
		return "", err
	}
	r.seq++
	ref := Ref(fmt.Sprintf("msg-%d", r.seq))
	r.sent = append(r.sent, Sent{Ref: ref, Message: m})
	return ref, nil
}

func (r *Recorder) ClearActions(_ context.Context, chatID int64, ref Ref) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failClear != nil {
		return r.failClear
	}
	r.cleared = append(r.cleared, Cleared{ChatID: chatID, Ref: ref})
	return nil
}

func (r *Recorder) FailChat(chatID int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failChats[chatID] = err
}

func (r *Recorder) FailClear(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failClear = err
}

// To returns messages sent to chatID, oldest first.
func (r *Recorder) To(chatID int64) []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sent
	for _, s := range r.sent {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

func (r *Recorder) Last(chatID int64) (Sent, bool) {
	msgs := r.To(chatID)
	if len(msgs) == 0 {
		return Sent{}, false
	}
	return msgs[len(msgs)-1], true
}

func (r *Recorder) Cleared() []Cleared {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Cleared(nil), r.cleared...)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
	r.cleared = nil
}
