package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/chat"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/models"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/session"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/pkg/errors"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/pkg/logger"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/pkg/utils"
)

// Presence tracking
var (
	onlineUsers   = make(map[string]map[string]bool) // userId -> socket IDs
	onlineUsersMu sync.RWMutex
)

// GetOnlineUsers returns list of online user IDs
func GetOnlineUsers() []string {
	onlineUsersMu.RLock()
	defer onlineUsersMu.RUnlock()

	users := make([]string, 0, len(onlineUsers))
	for userID := range onlineUsers {
		users = append(users, userID)
	}
	return users
}

// markOnline records the socket and reports whether it is the user's first
func markOnline(userID, socketID string) bool {
	onlineUsersMu.Lock()
	defer onlineUsersMu.Unlock()
	if onlineUsers[userID] == nil {
		onlineUsers[userID] = make(map[string]bool)
	}
	onlineUsers[userID][socketID] = true
	return len(onlineUsers[userID]) == 1
}

// markOffline drops the socket and reports whether the user has none left
func markOffline(userID, socketID string) bool {
	onlineUsersMu.Lock()
	defer onlineUsersMu.Unlock()
	sockets, ok := onlineUsers[userID]
	if !ok {
		return false
	}
	delete(sockets, socketID)
	if len(sockets) == 0 {
		delete(onlineUsers, userID)
		return true
	}
	return false
}

// socketConn is the chat state of one connected client. The client has at most
// one conversation open at a time.
type socketConn struct {
	conn     socketio.Conn
	session  *session.Session
	channel  *chat.Channel
	composer *chat.Composer

	mu      sync.Mutex
	typists map[string]*chat.Typist
}

func (sc *socketConn) typist(conversationID string, idle time.Duration) *chat.Typist {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	t, ok := sc.typists[conversationID]
	if !ok {
		t = chat.NewTypist(sc.composer, conversationID, idle)
		sc.typists[conversationID] = t
	}
	return t
}

// dropTypist clears and forgets the typist for conversationID, if any
func (sc *socketConn) dropTypist(ctx context.Context, conversationID string) {
	sc.mu.Lock()
	t, ok := sc.typists[conversationID]
	delete(sc.typists, conversationID)
	sc.mu.Unlock()
	if ok {
		t.Stop(ctx)
	}
}

func (sc *socketConn) close(ctx context.Context) {
	sc.channel.Close()
	sc.mu.Lock()
	typists := sc.typists
	sc.typists = map[string]*chat.Typist{}
	sc.mu.Unlock()
	for _, t := range typists {
		t.Stop(ctx)
	}
}

type typingPayload struct {
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

type sendPayload struct {
	ConversationID string              `json:"conversationId"`
	Body           string              `json:"body"`
	Attachments    []models.Attachment `json:"attachments"`
	SystemType     *models.SystemType  `json:"systemType"`
}

// socketMember checks the socket's viewer belongs to conversationID
func (h *ChatHandler) socketMember(ctx context.Context, sc *socketConn, conversationID string) error {
	conv, err := h.Backend.GetConversation(ctx, conversationID)
	if err != nil || !conv.HasParticipant(sc.session.UserID) {
		return errors.NotFound("Conversation not found")
	}
	return nil
}

func (h *ChatHandler) socketTyping(ctx context.Context, sc *socketConn, data typingPayload) error {
	if data.ConversationID == "" {
		return errors.BadRequest("Conversation is required")
	}
	if !data.IsTyping {
		sc.dropTypist(ctx, data.ConversationID)
		return nil
	}
	if err := h.socketMember(ctx, sc, data.ConversationID); err != nil {
		return err
	}
	sc.typist(data.ConversationID, h.TypingTimeout).Keystroke(ctx)
	return nil
}

func (h *ChatHandler) socketSend(ctx context.Context, sc *socketConn, data sendPayload) (*models.Message, error) {
	if err := h.socketMember(ctx, sc, data.ConversationID); err != nil {
		return nil, err
	}
	if data.SystemType != nil && !canPostSystem(sc.session) {
		return nil, errors.Forbidden("Only vendors and staff can post system messages")
	}
	for _, att := range data.Attachments {
		if err := h.Attachments.Validate(att); err != nil {
			return nil, errors.BadRequest(err.Error())
		}
	}

	m, err := sc.composer.SendMessage(ctx, data.ConversationID, data.Body, data.Attachments, data.SystemType)
	if err != nil {
		return nil, sendError(err, sc.composer.Err())
	}
	sc.dropTypist(ctx, data.ConversationID)
	return m, nil
}

func emitError(s socketio.Conn, event, message string) {
	s.Emit("chat_error", map[string]interface{}{
		"event": event,
		"error": message,
	})
}

// NewSocketServer wires the chat socket events. Authentication happens on
// connect with the token in the query string.
func (h *ChatHandler) NewSocketServer() *socketio.Server {
	server := socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&websocket.Transport{
				CheckOrigin: func(r *http.Request) bool { return true },
			},
			&polling.Transport{
				CheckOrigin: func(r *http.Request) bool { return true },
			},
		},
	})

	var (
		connsMu sync.RWMutex
		conns   = make(map[string]*socketConn)
	)
	lookup := func(s socketio.Conn) *socketConn {
		connsMu.RLock()
		defer connsMu.RUnlock()
		return conns[s.ID()]
	}

	server.OnConnect("/", func(s socketio.Conn) error {
		url := s.URL()

		token := url.Query().Get("token")
		if token == "" {
			token = url.Query().Get("auth_token") // Fallback
		}
		if token == "" {
			logger.Warn().Str("socket_id", s.ID()).Msg("socket rejected: no token")
			return fmt.Errorf("authentication required")
		}

		claims, err := utils.ValidateToken(token)
		if err != nil {
			logger.Warn().Str("socket_id", s.ID()).Msg("socket rejected: invalid token")
			return fmt.Errorf("invalid token")
		}

		sess, err := h.Directory.Start(context.Background(), claims.UserID, models.Role(claims.Role))
		if err != nil || !sess.Authenticated() {
			return fmt.Errorf("unknown account type")
		}

		sc := &socketConn{
			conn:     s,
			session:  sess,
			composer: chat.NewComposer(h.Backend, sess, h.Notifier),
			typists:  make(map[string]*chat.Typist),
		}
		sc.channel = chat.NewChannel(h.Backend, h.Feed, h.Directory, sess,
			chat.WithTypingTimeout(h.TypingTimeout),
			chat.OnMessage(func(m models.Message) {
				s.Emit("new_message", m)
			}),
			chat.OnTyping(func(conversationID string, userIDs []string) {
				s.Emit("typing_users", map[string]interface{}{
					"conversationId": conversationID,
					"userIds":        userIDs,
				})
			}),
		)

		connsMu.Lock()
		conns[s.ID()] = sc
		connsMu.Unlock()
		s.SetContext(sess.UserID)

		// Personal room for multi-device delivery, global room for presence
		s.Join(sess.UserID)
		s.Join("presence")
		if markOnline(sess.UserID, s.ID()) {
			server.BroadcastToRoom("/", "presence", "presence_update", map[string]interface{}{
				"userId":   sess.UserID,
				"isOnline": true,
			})
		}
		s.Emit("online_users", GetOnlineUsers())

		logger.Info().Str("socket_id", s.ID()).Str("user_id", sess.UserID).Msg("socket authenticated")
		return nil
	})

	server.OnEvent("/", "open_conversation", func(s socketio.Conn, conversationID string) {
		sc := lookup(s)
		if sc == nil {
			return
		}
		ctx := context.Background()
		conv, err := h.Backend.GetConversation(ctx, conversationID)
		if err != nil || !conv.HasParticipant(sc.session.UserID) {
			emitError(s, "open_conversation", "Conversation not found")
			return
		}

		sc.channel.OpenConversation(ctx, conversationID)
		if msg := sc.channel.Err(); msg != "" || sc.channel.State() != chat.StateOpen {
			emitError(s, "open_conversation", "Failed to load conversation")
			return
		}
		s.Emit("conversation_opened", map[string]interface{}{
			"conversation": sc.channel.Conversation(),
			"messages":     sc.channel.Messages(),
		})
	})

	server.OnEvent("/", "close_conversation", func(s socketio.Conn) {
		sc := lookup(s)
		if sc == nil {
			return
		}
		if conv := sc.channel.Conversation(); conv != nil {
			sc.dropTypist(context.Background(), conv.ID)
		}
		sc.channel.Close()
	})

	server.OnEvent("/", "typing", func(s socketio.Conn, data typingPayload) {
		sc := lookup(s)
		if sc == nil {
			return
		}
		if err := h.socketTyping(context.Background(), sc, data); err != nil {
			emitError(s, "typing", err.Error())
		}
	})

	server.OnEvent("/", "send_message", func(s socketio.Conn, data sendPayload) {
		sc := lookup(s)
		if sc == nil {
			return
		}
		m, err := h.socketSend(context.Background(), sc, data)
		if err != nil {
			emitError(s, "send_message", err.Error())
			return
		}

		// Other devices of the sender that do not have the conversation open
		server.BroadcastToRoom("/", sc.session.UserID, "message_sent", m)
	})

	server.OnEvent("/", "get_online_users", func(s socketio.Conn) {
		s.Emit("online_users", GetOnlineUsers())
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		connsMu.Lock()
		sc := conns[s.ID()]
		delete(conns, s.ID())
		connsMu.Unlock()
		if sc == nil {
			return
		}

		sc.close(context.Background())
		if markOffline(sc.session.UserID, s.ID()) {
			server.BroadcastToRoom("/", "presence", "presence_update", map[string]interface{}{
				"userId":   sc.session.UserID,
				"isOnline": false,
			})
		}
		logger.Debug().Str("socket_id", s.ID()).Str("reason", reason).Msg("socket closed")
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		logger.Warn().Err(e).Msg("socket error")
	})

	return server
}

// SocketHandler adapts the socket.io server to gin
func SocketHandler(server *socketio.Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		server.ServeHTTP(c.Writer, c.Request)
	}
}
