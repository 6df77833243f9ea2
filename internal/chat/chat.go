// Package chat is the messaging core: the viewer's conversation list, the open
// conversation's live message channel, and the composer that sends into it.
//
// Components are per-viewer state holders bound to an explicit session.Session.
// Failures of read paths are absorbed into the component's Err() string and logged;
// SendMessage and CreateOrOpenConversation also return the error to the caller.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/models"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/realtime"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/session"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/store"
)

var (
	ErrNotAuthenticated     = errors.New("user not authenticated")
	ErrUnknownRole          = errors.New("user role could not be determined")
	ErrEmptyMessage         = errors.New("message must have a body or an attachment")
	ErrInvalidSystemType    = errors.New("invalid system message type")
	ErrInvalidConversation  = errors.New("invalid conversation parameters")
	ErrConversationBlocked  = errors.New("conversation blocked between participants")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrPickerCancelled      = errors.New("selection cancelled")
	ErrInvalidModerationReq = errors.New("invalid block or report request")
)

// Backend is the durable store the chat components read and write through
type Backend interface {
	ListConversations(ctx context.Context, q store.ConversationQuery) ([]models.Conversation, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	FindConversations(ctx context.Context, l store.ConversationLookup) ([]models.Conversation, error)
	InsertConversation(ctx context.Context, conv *models.Conversation) error
	SetArchived(ctx context.Context, conversationID, userID string, archived bool) error
	CountUnread(ctx context.Context, conversationID, userID string) (int64, error)

	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	InsertMessage(ctx context.Context, m *models.Message) error
	ReadersOf(ctx context.Context, messageIDs []string) (map[string][]string, error)
	UpsertReadReceipt(ctx context.Context, messageID, userID string, at time.Time) (bool, error)
	UpsertTyping(ctx context.Context, conversationID, userID string, isTyping bool, at time.Time) error

	ListCannedReplies(ctx context.Context, vendorID string) ([]models.CannedReply, error)
	InsertBlockReport(ctx context.Context, b *models.BlockReport) error
	IsBlocked(ctx context.Context, a, b string) (bool, error)
}

// Feed delivers live row changes
type Feed interface {
	Subscribe(table string, filter realtime.Filter, fn realtime.Handler) realtime.Subscription
}

// Profiles resolves a sender's display name and avatar
type Profiles interface {
	Lookup(ctx context.Context, kind models.Role, userID string) (session.Profile, error)
}

// Notifier is told about every message sent through a Composer
type Notifier interface {
	MessageCreated(ctx context.Context, m models.Message) error
}

// now is the clock for IDs and timestamps; always UTC so stored times sort as text.
var now = func() time.Time { return time.Now().UTC() }

// newID builds "<prefix>_<unix ms>_<9 random chars>". Uniqueness is not checked
// against the backend.
func newID(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s_%d_%s", prefix, now().UnixMilli(), suffix)
}

// errorState is the user-visible error string shared by the components
type errorState struct {
	errMu sync.RWMutex
	msg   string
}

// Err returns the last recorded failure, or "" when the last operation succeeded
func (e *errorState) Err() string {
	e.errMu.RLock()
	defer e.errMu.RUnlock()
	return e.msg
}

func (e *errorState) setErr(msg string) {
	e.errMu.Lock()
	e.msg = msg
	e.errMu.Unlock()
}

func (e *errorState) clearErr() {
	e.setErr("")
}

// tasks tracks background work and exposes a channel closed when none is running
type tasks struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

func (t *tasks) add() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.n == 0 {
		t.idle = make(chan struct{})
	}
	t.n++
}

func (t *tasks) done() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n--
	if t.n == 0 {
		close(t.idle)
	}
}

func (t *tasks) settled() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.n == 0 {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return t.idle
}
