package server

import (
	"fmt"
	"net/http"

	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/messages"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/reconcile"
	"github.com/gin-gonic/gin"
)

type sendMessageRequest struct {
	ReceiverID  string `json:"receiver_id"`
	Content     string `json:"content"`
	MediaURL    string `json:"media_url"`
	MediaType   string `json:"media_type"`
	MessageType string `json:"message_type"`
}

func (h *httpHandler) handleSendMessage(c *gin.Context) {
	var request sendMessageRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalid(c, "server.send_message.invalid_body", "invalid request body")
		return
	}
	message, err := h.messages.Send(c.Request.Context(), messages.SendInput{
		SenderID:   callerID(c),
		ReceiverID: request.ReceiverID,
		Content:    request.Content,
		MediaRef:   request.MediaURL,
		MediaKind:  request.MediaType,
		Kind:       request.MessageType,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, "Message sent successfully", message)
}

func (h *httpHandler) handleGetMessage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		respondInvalid(c, "server.get_message.invalid_id", "invalid message id")
		return
	}
	message, err := h.messages.Get(c.Request.Context(), id, callerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "Message retrieved", message)
}

type editMessageRequest struct {
	Content string `json:"content"`
}

func (h *httpHandler) handleEditMessage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		respondInvalid(c, "server.edit_message.invalid_id", "invalid message id")
		return
	}
	var request editMessageRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalid(c, "server.edit_message.invalid_body", "invalid request body")
		return
	}
	message, err := h.messages.Edit(c.Request.Context(), id, callerID(c), request.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "Message updated successfully", message)
}

type deleteMessageRequest struct {
	DeleteForEveryone bool `json:"delete_for_everyone"`
}

func (h *httpHandler) handleDeleteMessage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		respondInvalid(c, "server.delete_message.invalid_id", "invalid message id")
		return
	}
	var request deleteMessageRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			respondInvalid(c, "server.delete_message.invalid_body", "invalid request body")
			return
		}
	}
	forEveryone := request.DeleteForEveryone || queryBool(c, "delete_for_everyone")
	if err := h.messages.Delete(c.Request.Context(), id, callerID(c), forEveryone); err != nil {
		h.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "Message deleted successfully", gin.H{"message_id": id})
}

type markMessagesReadRequest struct {
	MessageIDs []int64 `json:"message_ids"`
}

func (h *httpHandler) handleMarkMessagesRead(c *gin.Context) {
	var request markMessagesReadRequest
	if err := c.ShouldBindJSON(&request); err != nil || len(request.MessageIDs) == 0 {
		respondInvalid(c, "server.mark_messages_read.invalid_body", "message_ids array required")
		return
	}
	updated, err := h.messages.MarkRead(c.Request.Context(), request.MessageIDs, callerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "Messages marked as read", gin.H{
		"marked_count": len(updated),
		"message_ids":  updated,
	})
}

func (h *httpHandler) handleListMessages(c *gin.Context) {
	page, err := h.messages.ListBetween(c.Request.Context(), callerID(c), c.Query("other_user_id"), pageRequest(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "Messages retrieved", page)
}

type screenshotRequest struct {
	ChatWithUserID string `json:"chat_with_user_id"`
}

func (h *httpHandler) handleScreenshot(c *gin.Context) {
	var request screenshotRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalid(c, "server.screenshot.invalid_body", "invalid request body")
		return
	}
	alert, err := h.messages.ReportScreenshot(c.Request.Context(), callerID(c), request.ChatWithUserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, "Screenshot alert sent", alert)
}

func (h *httpHandler) handleListConversations(c *gin.Context) {
	page, err := h.conversations.ListConversations(c.Request.Context(), callerID(c), pageRequest(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "Conversations retrieved", page)
}

func (h *httpHandler) handleListNotifications(c *gin.Context) {
	result, err := h.notifications.List(c.Request.Context(), callerID(c), pageRequest(c), queryBool(c, "unread_only"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "Notifications retrieved", result)
}

type markNotificationsReadRequest struct {
	NotificationIDs []int64 `json:"notification_ids"`
	MarkAll         bool    `json:"mark_all"`
}

func (h *httpHandler) handleMarkNotificationsRead(c *gin.Context) {
	var request markNotificationsReadRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalid(c, "server.mark_notifications_read.invalid_body", "invalid request body")
		return
	}
	result, err := h.notifications.MarkRead(c.Request.Context(), callerID(c), request.NotificationIDs, request.MarkAll)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "Notifications marked as read", result)
}

type deviceRequest struct {
	Token      string `json:"token"`
	DeviceType string `json:"device_type"`
}

func (h *httpHandler) handleRegisterDevice(c *gin.Context) {
	var request deviceRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalid(c, "server.register_device.invalid_body", "invalid request body")
		return
	}
	endpoint, err := h.notifications.RegisterDevice(c.Request.Context(), callerID(c), request.Token, request.DeviceType)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "Device registered", endpoint)
}

func (h *httpHandler) handleDeactivateDevice(c *gin.Context) {
	var request deviceRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalid(c, "server.deactivate_device.invalid_body", "invalid request body")
		return
	}
	if err := h.notifications.DeactivateDevice(c.Request.Context(), callerID(c), request.Token); err != nil {
		h.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "Device deactivated", nil)
}

type syncOfflineRequest struct {
	Actions []reconcile.Action `json:"actions"`
}

func (h *httpHandler) handleSyncOffline(c *gin.Context) {
	var request syncOfflineRequest
	if err := c.ShouldBindJSON(&request); err != nil || request.Actions == nil {
		respondInvalid(c, "server.sync_offline.missing_actions", "Actions array required")
		return
	}
	report := h.reconciler.Apply(c.Request.Context(), callerID(c), request.Actions)
	message := fmt.Sprintf("Processed %d out of %d actions", report.Summary.Succeeded, report.Summary.Total)
	respondSuccess(c, http.StatusOK, message, report)
}

type statusRequest struct {
	IsOnline *bool `json:"is_online"`
}

func (h *httpHandler) handleUpdateStatus(c *gin.Context) {
	var request statusRequest
	if err := c.ShouldBindJSON(&request); err != nil || request.IsOnline == nil {
		respondInvalid(c, "server.update_status.missing_is_online", "is_online is required")
		return
	}
	summary, err := h.users.UpdateStatus(c.Request.Context(), callerID(c), *request.IsOnline)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "Status updated", summary)
}
