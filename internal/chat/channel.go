package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/models"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/realtime"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/session"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/store"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/pkg/logger"
)

// DefaultTypingTimeout is how long a typing user stays listed without a refresh
const DefaultTypingTimeout = 3 * time.Second

type State int

const (
	StateClosed State = iota
	StateLoading
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateOpen:
		return "open"
	}
	return "closed"
}

type ChannelOption func(*Channel)

func WithTypingTimeout(d time.Duration) ChannelOption {
	return func(c *Channel) {
		if d > 0 {
			c.typingTimeout = d
		}
	}
}

// OnMessage is called for every live message appended to the open conversation
func OnMessage(fn func(models.Message)) ChannelOption {
	return func(c *Channel) { c.onMessage = fn }
}

// OnTyping is called with the current typing users whenever the set changes
func OnTyping(fn func(conversationID string, userIDs []string)) ChannelOption {
	return func(c *Channel) { c.onTyping = fn }
}

// Channel owns the history and live updates of the one conversation the viewer
// has open. Opening another conversation or calling Close drops both feed
// subscriptions; results of loads and callbacks that belong to an earlier
// conversation are discarded.
type Channel struct {
	errorState

	backend  Backend
	feed     Feed
	profiles Profiles
	session  *session.Session
	log      zerolog.Logger

	typingTimeout time.Duration
	onMessage     func(models.Message)
	onTyping      func(string, []string)

	mu             sync.RWMutex
	state          State
	gen            uint64
	conversationID string
	conversation   *models.Conversation
	messages       []models.Message
	seen           map[string]bool
	pending        []models.Message
	typing         []string
	typingTimers   map[string]typingTimer
	typingSeq      uint64
	msgSub         realtime.Subscription
	typingSub      realtime.Subscription

	reads tasks
}

// NewChannel builds a closed channel. profiles may be nil, in which case sender
// names come from the conversation's participant list.
func NewChannel(backend Backend, feed Feed, profiles Profiles, sess *session.Session, opts ...ChannelOption) *Channel {
	if sess == nil {
		sess = session.Anonymous()
	}
	c := &Channel{
		backend:       backend,
		feed:          feed,
		profiles:      profiles,
		session:       sess,
		typingTimeout: DefaultTypingTimeout,
		log:           logger.Component("channel"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Channel) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Conversation returns the open conversation, or nil
func (c *Channel) Conversation() *models.Conversation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conversation == nil {
		return nil
	}
	conv := *c.conversation
	return &conv
}

// Messages returns a copy of the loaded history plus live appends
func (c *Channel) Messages() []models.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Message, len(c.messages))
	for i, m := range c.messages {
		m.ReadBy = append([]string(nil), m.ReadBy...)
		out[i] = m
	}
	return out
}

// TypingUsers returns the other users currently typing, in the order they started
func (c *Channel) TypingUsers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.typing...)
}

// ReadsSettled is closed once every mark-as-read task spawned so far has finished
func (c *Channel) ReadsSettled() <-chan struct{} {
	return c.reads.settled()
}

// OpenConversation loads conversation id and starts live delivery for it.
// Messages from other senders are marked read in the background; see ReadsSettled.
func (c *Channel) OpenConversation(ctx context.Context, id string) {
	if !c.session.Authenticated() {
		c.setErr(ErrNotAuthenticated.Error())
		return
	}
	c.clearErr()
	gen := c.begin(id)

	conv, err := c.backend.GetConversation(ctx, id)
	if err != nil {
		c.fail(gen, err)
		return
	}
	msgs, err := c.backend.ListMessages(ctx, id)
	if err != nil {
		c.fail(gen, err)
		return
	}

	ids := make([]string, len(msgs))
	for i := range msgs {
		ids[i] = msgs[i].ID
	}
	readers, err := c.backend.ReadersOf(ctx, ids)
	if err != nil {
		c.log.Warn().Err(err).Str("conversation_id", id).Msg("failed to load read receipts")
		readers = map[string][]string{}
	}

	profiles := make(map[string]session.Profile)
	for i := range msgs {
		c.resolveSender(ctx, conv, &msgs[i], profiles)
		msgs[i].ReadBy = append([]string{}, readers[msgs[i].ID]...)
	}

	me := c.session.UserID
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		c.log.Debug().Str("conversation_id", id).Msg("discarding stale conversation load")
		return
	}
	c.conversation = conv
	c.messages = msgs
	for _, m := range msgs {
		c.seen[m.ID] = true
	}
	for _, m := range c.pending {
		if !c.seen[m.ID] {
			c.seen[m.ID] = true
			c.messages = append(c.messages, m)
		}
	}
	c.pending = nil
	c.state = StateOpen

	var unread []string
	for _, m := range c.messages {
		if m.SenderID != me && !m.IsReadBy(me) {
			unread = append(unread, m.ID)
		}
	}
	if len(unread) > 0 {
		c.reads.add()
	}
	c.mu.Unlock()

	if len(unread) > 0 {
		go c.markRead(context.WithoutCancel(ctx), gen, unread)
	}
}

// begin tears down the previous conversation and subscribes to the new one
// before its history loads, so nothing inserted during the load is missed.
func (c *Channel) begin(id string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardownLocked()
	c.gen++
	gen := c.gen
	c.state = StateLoading
	c.conversationID = id
	c.seen = make(map[string]bool)
	c.typingTimers = make(map[string]typingTimer)

	if c.feed != nil {
		c.msgSub = c.feed.Subscribe(store.TableMessages, realtime.Eq("conversation_id", id), c.messageHandler(gen))
		c.typingSub = c.feed.Subscribe(store.TableTyping, realtime.Eq("conversation_id", id), c.typingHandler(gen))
	}
	return gen
}

func (c *Channel) fail(gen uint64, err error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	id := c.conversationID
	c.teardownLocked()
	c.state = StateClosed
	c.mu.Unlock()

	c.log.Error().Err(err).Str("conversation_id", id).Str("user_id", c.session.UserID).Msg("failed to open conversation")
	c.setErr("Failed to load conversation")
}

// Close unsubscribes from the open conversation and drops its state
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
	c.gen++
	c.state = StateClosed
}

func (c *Channel) teardownLocked() {
	if c.msgSub != nil {
		c.msgSub.Unsubscribe()
		c.msgSub = nil
	}
	if c.typingSub != nil {
		c.typingSub.Unsubscribe()
		c.typingSub = nil
	}
	for _, t := range c.typingTimers {
		t.timer.Stop()
	}
	c.typingTimers = nil
	c.typing = nil
	c.conversationID = ""
	c.conversation = nil
	c.messages = nil
	c.seen = nil
	c.pending = nil
}

func (c *Channel) messageHandler(gen uint64) realtime.Handler {
	return func(ch realtime.Change) {
		if ch.Event != realtime.EventInsert {
			return
		}
		var m models.Message
		if err := ch.Decode(&m); err != nil {
			c.log.Warn().Err(err).Msg("dropping undecodable message change")
			return
		}

		c.mu.RLock()
		if c.gen != gen {
			c.mu.RUnlock()
			return
		}
		conv := c.conversation
		c.mu.RUnlock()

		c.resolveSender(context.Background(), conv, &m, nil)
		if m.ReadBy == nil {
			m.ReadBy = []string{}
		}

		me := c.session.UserID
		c.mu.Lock()
		if c.gen != gen || c.state == StateClosed {
			c.mu.Unlock()
			return
		}
		if c.state == StateLoading {
			c.pending = append(c.pending, m)
			c.mu.Unlock()
			return
		}
		if c.seen[m.ID] {
			c.mu.Unlock()
			return
		}
		c.seen[m.ID] = true
		c.messages = append(c.messages, m)
		mine := m.SenderID == me
		if !mine {
			c.reads.add()
		}
		c.mu.Unlock()

		if !mine {
			go c.markRead(context.Background(), gen, []string{m.ID})
		}
		if c.onMessage != nil {
			c.onMessage(m)
		}
	}
}

func (c *Channel) typingHandler(gen uint64) realtime.Handler {
	return func(ch realtime.Change) {
		var row models.TypingIndicator
		if ch.Event != realtime.EventDelete {
			if err := ch.Decode(&row); err != nil {
				c.log.Warn().Err(err).Msg("dropping undecodable typing change")
				return
			}
		}
		userID := row.UserID
		if userID == "" {
			userID = ch.Keys["user_id"]
		}
		if userID == "" || userID == c.session.UserID {
			return
		}
		active := ch.Event != realtime.EventDelete && row.IsTyping

		c.mu.Lock()
		if c.gen != gen || c.state == StateClosed {
			c.mu.Unlock()
			return
		}
		var changed bool
		if active {
			changed = c.addTypingLocked(gen, userID)
		} else {
			changed = c.removeTypingLocked(userID)
		}
		users := append([]string(nil), c.typing...)
		convID := c.conversationID
		c.mu.Unlock()

		if changed && c.onTyping != nil {
			c.onTyping(convID, users)
		}
	}
}

// typingTimer expires one typing user. seq identifies the arming; a timer that
// already fired for an older arming finds a different seq and does nothing.
type typingTimer struct {
	timer *time.Timer
	seq   uint64
}

func (c *Channel) addTypingLocked(gen uint64, userID string) bool {
	prev, refreshed := c.typingTimers[userID]
	if refreshed {
		prev.timer.Stop()
	}
	c.typingSeq++
	seq := c.typingSeq
	c.typingTimers[userID] = typingTimer{
		timer: time.AfterFunc(c.typingTimeout, func() { c.expireTyping(gen, userID, seq) }),
		seq:   seq,
	}
	if refreshed {
		return false
	}
	c.typing = append(c.typing, userID)
	return true
}

func (c *Channel) removeTypingLocked(userID string) bool {
	t, ok := c.typingTimers[userID]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(c.typingTimers, userID)
	for i, id := range c.typing {
		if id == userID {
			c.typing = append(c.typing[:i:i], c.typing[i+1:]...)
			break
		}
	}
	return true
}

func (c *Channel) expireTyping(gen uint64, userID string, seq uint64) {
	c.mu.Lock()
	if c.gen != gen || c.typingTimers[userID].seq != seq {
		c.mu.Unlock()
		return
	}
	changed := c.removeTypingLocked(userID)
	users := append([]string(nil), c.typing...)
	convID := c.conversationID
	c.mu.Unlock()

	if changed && c.onTyping != nil {
		c.onTyping(convID, users)
	}
}

// markRead writes receipts for ids and then reflects them locally if the same
// conversation is still open.
func (c *Channel) markRead(ctx context.Context, gen uint64, ids []string) {
	defer c.reads.done()

	me := c.session.UserID
	marked := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, err := c.backend.UpsertReadReceipt(ctx, id, me, now()); err != nil {
			c.log.Warn().Err(err).Str("message_id", id).Msg("failed to mark message as read")
			c.setErr("Failed to mark messages as read")
			continue
		}
		marked[id] = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	for i := range c.messages {
		if marked[c.messages[i].ID] && !c.messages[i].IsReadBy(me) {
			c.messages[i].ReadBy = append(c.messages[i].ReadBy, me)
		}
	}
}

// MarkAsRead records a receipt for the viewer; repeating it has no further effect
func (c *Channel) MarkAsRead(ctx context.Context, messageID string) {
	if !c.session.Authenticated() {
		return
	}
	me := c.session.UserID
	if _, err := c.backend.UpsertReadReceipt(ctx, messageID, me, now()); err != nil {
		c.log.Warn().Err(err).Str("message_id", messageID).Msg("failed to mark message as read")
		c.setErr("Failed to mark message as read")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.messages {
		if c.messages[i].ID == messageID && !c.messages[i].IsReadBy(me) {
			c.messages[i].ReadBy = append(c.messages[i].ReadBy, me)
		}
	}
}

// resolveSender fills the sender's display name and avatar, preferring the
// profile directory and falling back to the participant list.
func (c *Channel) resolveSender(ctx context.Context, conv *models.Conversation, m *models.Message, cache map[string]session.Profile) {
	if p, ok := cache[m.SenderID]; ok {
		m.SenderName, m.SenderAvatar = p.DisplayName, p.AvatarURL
		return
	}

	p := session.Profile{UserID: m.SenderID, Kind: m.SenderRole}
	resolved := false
	if c.profiles != nil && m.SenderRole.Valid() {
		found, err := c.profiles.Lookup(ctx, m.SenderRole, m.SenderID)
		if err == nil {
			p, resolved = found, true
		} else {
			c.log.Debug().Err(err).Str("sender_id", m.SenderID).Msg("sender profile lookup failed")
		}
	}
	if !resolved && conv != nil {
		for _, part := range conv.Participants {
			if part.UserID == m.SenderID {
				p.DisplayName, p.AvatarURL = part.DisplayName, part.AvatarURL
				break
			}
		}
	}

	if cache != nil {
		cache[m.SenderID] = p
	}
	m.SenderName, m.SenderAvatar = p.DisplayName, p.AvatarURL
}

// CreateParams describes a conversation for CreateOrOpenConversation
type CreateParams struct {
	Type         models.ConversationType
	OrderID      *string
	Participants []models.ConversationParticipant
}

// CreateOrOpenConversation returns the ID of the viewer's conversation matching
// (type, order), creating it if none exists. Conversations without an order
// also need the same participants to match.
func (c *Channel) CreateOrOpenConversation(ctx context.Context, p CreateParams) (string, error) {
	if !c.session.Authenticated() {
		c.setErr(ErrNotAuthenticated.Error())
		return "", ErrNotAuthenticated
	}
	if !p.Type.Valid() || (p.Type == models.ConversationOrder && (p.OrderID == nil || *p.OrderID == "")) {
		c.setErr("Invalid conversation details")
		return "", ErrInvalidConversation
	}
	c.clearErr()

	me := c.session.UserID
	participants := c.withViewer(p.Participants)

	existing, err := c.backend.FindConversations(ctx, store.ConversationLookup{Type: p.Type, OrderID: p.OrderID, UserID: me})
	if err != nil {
		c.log.Error().Err(err).Str("user_id", me).Msg("failed to look up conversation")
		c.setErr("Failed to start conversation")
		return "", fmt.Errorf("look up conversation: %w", err)
	}
	for i := range existing {
		if p.OrderID != nil || hasAllParticipants(&existing[i], participants) {
			return existing[i].ID, nil
		}
	}

	for _, part := range participants {
		if part.UserID == me {
			continue
		}
		blocked, err := c.backend.IsBlocked(ctx, me, part.UserID)
		if err != nil {
			c.log.Error().Err(err).Str("user_id", me).Msg("failed to check blocks")
			c.setErr("Failed to start conversation")
			return "", fmt.Errorf("check blocks: %w", err)
		}
		if blocked {
			c.setErr("You can't message this user")
			return "", ErrConversationBlocked
		}
	}

	at := now()
	conv := &models.Conversation{
		ID:           newID("conv"),
		Type:         p.Type,
		OrderID:      p.OrderID,
		CreatedAt:    at,
		UpdatedAt:    at,
		Participants: participants,
	}
	if err := c.backend.InsertConversation(ctx, conv); err != nil {
		c.log.Error().Err(err).Str("user_id", me).Msg("failed to create conversation")
		c.setErr("Failed to start conversation")
		return "", fmt.Errorf("create conversation: %w", err)
	}
	c.log.Info().Str("conversation_id", conv.ID).Str("type", string(conv.Type)).Msg("conversation created")
	return conv.ID, nil
}

// withViewer puts the viewer first and drops duplicate users
func (c *Channel) withViewer(in []models.ConversationParticipant) []models.ConversationParticipant {
	me := c.session.UserID
	out := make([]models.ConversationParticipant, 0, len(in)+1)
	seen := make(map[string]bool, len(in)+1)

	for _, p := range in {
		if p.UserID == me {
			out = append(out, p)
			seen[me] = true
			break
		}
	}
	if !seen[me] {
		out = append(out, models.ConversationParticipant{
			UserID:      me,
			Role:        c.session.Kind,
			DisplayName: c.session.DisplayName,
			AvatarURL:   c.session.AvatarURL,
		})
		seen[me] = true
	}
	for _, p := range in {
		if p.UserID == "" || seen[p.UserID] {
			continue
		}
		seen[p.UserID] = true
		out = append(out, p)
	}
	return out
}

func hasAllParticipants(conv *models.Conversation, want []models.ConversationParticipant) bool {
	for _, p := range want {
		if !conv.HasParticipant(p.UserID) {
			return false
		}
	}
	return true
}
