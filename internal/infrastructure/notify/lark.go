// Package notify delivers committed workflow events to chat and messaging
// collaborators.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/ebaz7/lepan-crm-sub000/internal/application/port"
)

// LarkConfig holds Lark messenger configuration
type LarkConfig struct {
	AppID     string
	AppSecret string
	// ReceiveIDType is how receive IDs are interpreted: chat_id, open_id, user_id or email
	ReceiveIDType string
	// BaseURL overrides the Open API endpoint
	BaseURL string
}

// LarkMessenger implements port.MessageSender with the Lark IM API
type LarkMessenger struct {
	client        *lark.Client
	receiveIDType string
	logger        *zap.Logger
}

// NewLarkMessenger creates a Lark messenger
func NewLarkMessenger(cfg LarkConfig, logger *zap.Logger) *LarkMessenger {
	opts := []lark.ClientOptionFunc{
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lark.WithOpenBaseUrl(cfg.BaseURL))
	}

	receiveIDType := cfg.ReceiveIDType
	if receiveIDType == "" {
		receiveIDType = larkim.ReceiveIdTypeChatId
	}

	return &LarkMessenger{
		client:        lark.NewClient(cfg.AppID, cfg.AppSecret, opts...),
		receiveIDType: receiveIDType,
		logger:        logger,
	}
}

// SendText posts a plain-text message
func (m *LarkMessenger) SendText(ctx context.Context, receiveID string, text string) error {
	if receiveID == "" {
		return fmt.Errorf("receiveID cannot be empty")
	}
	if text == "" {
		return fmt.Errorf("text cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to encode message content: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(m.receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(larkim.MsgTypeText).
			Content(string(content)).
			Build()).
		Build()

	resp, err := m.client.Im.Message.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("receive_id", receiveID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("receive_id", receiveID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	m.logger.Debug("Message sent",
		zap.String("message_id", messageID),
		zap.String("receive_id", receiveID))

	return nil
}

var _ port.MessageSender = (*LarkMessenger)(nil)
