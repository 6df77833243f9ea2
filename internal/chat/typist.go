package chat

import (
	"context"
	"sync"
	"time"
)

// Typist turns keystrokes into typing indicator writes: true on the first
// keystroke after idle, false once the composer has been quiet for the idle period.
type Typist struct {
	composer       *Composer
	conversationID string
	idle           time.Duration

	mu     sync.Mutex
	active bool
	timer  *time.Timer
}

func NewTypist(composer *Composer, conversationID string, idle time.Duration) *Typist {
	if idle <= 0 {
		idle = DefaultTypingTimeout
	}
	return &Typist{composer: composer, conversationID: conversationID, idle: idle}
}

// Typing reports whether the last write sent was true
func (t *Typist) Typing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Keystroke records activity and restarts the idle timer
func (t *Typist) Keystroke(ctx context.Context) {
	t.mu.Lock()
	start := !t.active
	t.active = true
	if t.timer != nil {
		t.timer.Stop()
	}
	bg := context.WithoutCancel(ctx)
	t.timer = time.AfterFunc(t.idle, func() { t.stopIfIdle(bg) })
	t.mu.Unlock()

	if start {
		t.composer.SendTypingIndicator(ctx, t.conversationID, true)
	}
}

// Stop clears the indicator immediately, e.g. after a send
func (t *Typist) Stop(ctx context.Context) {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	was := t.active
	t.active = false
	t.mu.Unlock()

	if was {
		t.composer.SendTypingIndicator(ctx, t.conversationID, false)
	}
}

func (t *Typist) stopIfIdle(ctx context.Context) {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return
	}
	t.active = false
	t.timer = nil
	t.mu.Unlock()

	t.composer.SendTypingIndicator(ctx, t.conversationID, false)
}
