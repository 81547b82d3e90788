package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/apperr"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/messages"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/notifications"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/social"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const opApply = "reconcile.apply"

var (
	errMissingDatabase = errors.New("reconcile: database handle is required")
	errMissingMessages = errors.New("reconcile: message store is required")
	errMissingSocial   = errors.New("reconcile: social store is required")
)

// Config wires the reconciler to the stores it replays into.
type Config struct {
	Database *gorm.DB
	Messages *messages.Service
	Social   *social.Service
	// Notifier receives the notices of an action once its transaction commits.
	Notifier notifications.Notifier
	Logger   *zap.Logger
}

// Reconciler applies offline batches one transaction per action.
type Reconciler struct {
	db       *gorm.DB
	messages *messages.Service
	social   *social.Service
	notifier notifications.Notifier
	logger   *zap.Logger
}

// stores are the services bound to one action's transaction.
type stores struct {
	messages *messages.Service
	social   *social.Service
}

// NewReconciler validates the configuration.
func NewReconciler(cfg Config) (*Reconciler, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Messages == nil {
		return nil, errMissingMessages
	}
	if cfg.Social == nil {
		return nil, errMissingSocial
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notifications.NopNotifier{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		db:       cfg.Database,
		messages: cfg.Messages,
		social:   cfg.Social,
		notifier: notifier,
		logger:   logger,
	}, nil
}

// Apply replays actions in order. A failing action never affects the others.
// Once ctx is cancelled the remaining actions are reported as failed; actions
// already committed stand.
func (r *Reconciler) Apply(ctx context.Context, userID string, actions []Action) Report {
	report := Report{Results: make([]Result, 0, len(actions))}
	for _, action := range actions {
		var result Result
		if ctx.Err() != nil {
			result = failure(action, apperr.Internal(opApply+".interrupted", ctx.Err()), "batch interrupted")
		} else {
			result = r.applyOne(ctx, userID, action)
		}
		report.Results = append(report.Results, result)
		if result.Success {
			report.Summary.Succeeded++
		} else {
			report.Summary.Failed++
		}
	}
	report.Summary.Total = len(report.Results)
	return report
}

func (r *Reconciler) applyOne(ctx context.Context, userID string, action Action) Result {
	if action.Kind == "" || isEmptyPayload(action.Data) {
		return failure(action, apperr.Validation(opApply+".invalid_format", "invalid action format"), "")
	}

	deferred := notifications.NewDeferred()
	var data map[string]any
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bound := stores{
			messages: r.messages.Bind(tx, deferred),
			social:   r.social.Bind(tx, deferred),
		}
		var handlerErr error
		data, handlerErr = r.dispatch(ctx, bound, userID, action)
		return handlerErr
	})
	if err != nil {
		deferred.Discard()
		if apperr.KindOf(err) == apperr.KindInternal {
			r.logger.Warn("offline action failed",
				zap.String("operation", opApply),
				zap.String("user_id", userID),
				zap.String("action_type", string(action.Kind)),
				zap.Error(err),
			)
		}
		return failure(action, err, "")
	}

	deferred.Flush(context.WithoutCancel(ctx), r.notifier)
	return Result{ClientID: action.ClientID, Success: true, Data: data}
}

func (r *Reconciler) dispatch(ctx context.Context, bound stores, userID string, action Action) (map[string]any, error) {
	switch action.Kind {
	case ActionSendMessage:
		return sendMessage(ctx, bound, userID, action.Data)
	case ActionCreatePost:
		return createPost(ctx, bound, userID, action.Data)
	case ActionLikePost:
		return likePost(ctx, bound, userID, action.Data)
	case ActionCommentPost:
		return commentPost(ctx, bound, userID, action.Data)
	case ActionFollowUser:
		return followUser(ctx, bound, userID, action.Data)
	case ActionUploadStory:
		return uploadStory(ctx, bound, userID, action.Data)
	default:
		return nil, apperr.Validation(opApply+".unsupported_kind", "unsupported action type")
	}
}

func sendMessage(ctx context.Context, bound stores, userID string, raw json.RawMessage) (map[string]any, error) {
	var data sendMessageData
	if err := decode(raw, &data); err != nil {
		return nil, err
	}
	if data.ReceiverID == "" {
		return nil, apperr.Validation(opApply+".missing_field", "missing field: receiver_id")
	}
	message, err := bound.messages.Send(ctx, messages.SendInput{
		SenderID:   userID,
		ReceiverID: string(data.ReceiverID),
		Content:    data.Content,
		MediaRef:   data.MediaURL,
		MediaKind:  data.MediaType,
		Kind:       data.MessageType,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"message_id": message.ID}, nil
}

func createPost(ctx context.Context, bound stores, userID string, raw json.RawMessage) (map[string]any, error) {
	var data createPostData
	if err := decode(raw, &data); err != nil {
		return nil, err
	}
	post, err := bound.social.CreatePost(ctx, userID, data.Content, data.MediaURL, data.MediaType)
	if err != nil {
		return nil, err
	}
	return map[string]any{"post_id": post.ID}, nil
}

func likePost(ctx context.Context, bound stores, userID string, raw json.RawMessage) (map[string]any, error) {
	var data likePostData
	if err := decode(raw, &data); err != nil {
		return nil, err
	}
	postID, ok := data.PostID.asInt64()
	if !ok {
		return nil, apperr.Validation(opApply+".missing_field", "post ID required")
	}
	like, err := bound.social.LikePost(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"like_id": like.ID, "post_id": postID}, nil
}

func commentPost(ctx context.Context, bound stores, userID string, raw json.RawMessage) (map[string]any, error) {
	var data commentPostData
	if err := decode(raw, &data); err != nil {
		return nil, err
	}
	postID, ok := data.PostID.asInt64()
	if !ok {
		return nil, apperr.Validation(opApply+".missing_field", "missing field: post_id")
	}
	comment, err := bound.social.CommentPost(ctx, userID, postID, data.Content)
	if err != nil {
		return nil, err
	}
	return map[string]any{"comment_id": comment.ID}, nil
}

func followUser(ctx context.Context, bound stores, userID string, raw json.RawMessage) (map[string]any, error) {
	var data followUserData
	if err := decode(raw, &data); err != nil {
		return nil, err
	}
	if data.UserID == "" {
		return nil, apperr.Validation(opApply+".missing_field", "user ID required")
	}
	request, err := bound.social.FollowUser(ctx, userID, string(data.UserID))
	if err != nil {
		return nil, err
	}
	return map[string]any{"request_id": request.ID}, nil
}

func uploadStory(ctx context.Context, bound stores, userID string, raw json.RawMessage) (map[string]any, error) {
	var data uploadStoryData
	if err := decode(raw, &data); err != nil {
		return nil, err
	}
	story, err := bound.social.UploadStory(ctx, userID, data.MediaURL, data.MediaType, data.Caption)
	if err != nil {
		return nil, err
	}
	return map[string]any{"story_id": story.ID}, nil
}

func decode(raw json.RawMessage, target any) error {
	if err := json.Unmarshal(raw, target); err != nil {
		return apperr.Validation(opApply+".malformed_data", "malformed action data")
	}
	return nil
}

func isEmptyPayload(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 ||
		bytes.Equal(trimmed, []byte("null")) ||
		bytes.Equal(trimmed, []byte("{}")) ||
		bytes.Equal(trimmed, []byte("[]"))
}

func failure(action Action, err error, message string) Result {
	if message == "" {
		message = apperr.PublicMessage(err)
	}
	return Result{
		ClientID:  action.ClientID,
		Success:   false,
		Error:     message,
		ErrorKind: apperr.KindOf(err),
	}
}
