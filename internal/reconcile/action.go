// Package reconcile replays batches of actions queued by offline clients.
package reconcile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/apperr"
)

// ActionKind is the closed set of replayable actions.
type ActionKind string

const (
	ActionSendMessage ActionKind = "send_message"
	ActionCreatePost  ActionKind = "create_post"
	ActionLikePost    ActionKind = "like_post"
	ActionCommentPost ActionKind = "comment_post"
	ActionFollowUser  ActionKind = "follow_user"
	ActionUploadStory ActionKind = "upload_story"
)

// Action is one queued client action. ClientID is opaque and echoed verbatim.
type Action struct {
	Kind     ActionKind      `json:"action_type"`
	Data     json.RawMessage `json:"data"`
	ClientID json.RawMessage `json:"client_id,omitempty"`
}

// Result is the outcome of one action, in input order.
type Result struct {
	ClientID  json.RawMessage `json:"client_id"`
	Success   bool            `json:"success"`
	Data      map[string]any  `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorKind apperr.Kind     `json:"error_kind,omitempty"`
}

// Summary aggregates a batch; Succeeded + Failed always equals Total.
type Summary struct {
	Total     int `json:"total_actions"`
	Succeeded int `json:"successful"`
	Failed    int `json:"failed"`
}

// Report is the full batch outcome.
type Report struct {
	Results []Result `json:"results"`
	Summary Summary  `json:"summary"`
}

// flexibleID accepts identifiers sent either as JSON strings or numbers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(raw []byte) error {
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var value string
		if err := json.Unmarshal(trimmed, &value); err != nil {
			return err
		}
		*f = flexibleID(strings.TrimSpace(value))
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(trimmed, &number); err != nil {
		return fmt.Errorf("identifier must be a string or number: %w", err)
	}
	*f = flexibleID(number.String())
	return nil
}

func (f flexibleID) asInt64() (int64, bool) {
	value, err := strconv.ParseInt(string(f), 10, 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	return value, true
}

type sendMessageData struct {
	ReceiverID  flexibleID `json:"receiver_id"`
	Content     string     `json:"content"`
	MediaURL    string     `json:"media_url"`
	MediaType   string     `json:"media_type"`
	MessageType string     `json:"message_type"`
}

type createPostData struct {
	Content   string `json:"content"`
	MediaURL  string `json:"media_url"`
	MediaType string `json:"media_type"`
}

type likePostData struct {
	PostID flexibleID `json:"post_id"`
}

type commentPostData struct {
	PostID  flexibleID `json:"post_id"`
	Content string     `json:"content"`
}

type followUserData struct {
	UserID flexibleID `json:"user_id"`
}

type uploadStoryData struct {
	MediaURL  string `json:"media_url"`
	MediaType string `json:"media_type"`
	Caption   string `json:"caption"`
}
