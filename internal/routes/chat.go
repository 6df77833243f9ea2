package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/handlers"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/middleware"
)

func RegisterChatRoutes(r gin.IRouter, h *handlers.ChatHandler) {
	chat := r.Group("/chat")
	// Enforce strict auth for chat even if parent group is optional
	chat.Use(middleware.AuthMiddleware())
	{
		chat.GET("/conversations", h.ListConversations) // ?filter=all|unread|orders|archived&q=
		chat.POST("/conversations", h.CreateConversation)
		chat.POST("/conversations/:id/archive", h.ArchiveConversation)
		chat.POST("/conversations/:id/unarchive", h.UnarchiveConversation)
		chat.POST("/conversations/:id/report", h.ReportConversation)

		chat.GET("/conversations/:id/messages", h.GetMessages)
		chat.POST("/conversations/:id/messages", middleware.ChatRateLimit(), h.SendMessage)
		chat.PUT("/conversations/:id/typing", h.SetTyping)
		chat.POST("/messages/:id/read", h.MarkRead)

		chat.GET("/canned-replies", h.CannedReplies)
		chat.POST("/blocks", h.BlockUser)
		chat.POST("/attachments", middleware.UploadRateLimit(), h.UploadAttachment)
	}
}
