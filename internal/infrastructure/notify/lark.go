// Package notify delivers workflow notifications through Lark: in-app
// messages go to the recipient as bot messages, email-channel messages
// use Lark's email receive type.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/docuflow/approval-engine/internal/application/port"
)

// Config holds Lark notifier configuration
type Config struct {
	AppID     string
	AppSecret string
}

// LarkNotifier implements port.Notifier on top of the Lark messaging API
type LarkNotifier struct {
	client *lark.Client
	logger *zap.Logger
}

// NewLarkNotifier creates a new Lark-backed notifier
func NewLarkNotifier(cfg Config, logger *zap.Logger) *LarkNotifier {
	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)

	return &LarkNotifier{
		client: client,
		logger: logger,
	}
}

// Notify sends one notification. Errors are returned for the caller to
// log; the workflow state machine never depends on delivery succeeding.
// Both channels share one delivery path: Lark resolves the recipient's
// email to the workspace account, and the channel only distinguishes
// the notification's intent in logs and escalation level flags.
func (n *LarkNotifier) Notify(ctx context.Context, channel port.Channel, recipient, subject, message string) error {
	receiveIDType := "email"
	msgType := "text"
	content, err := textContent(fmt.Sprintf("%s\n%s", subject, message))
	if err != nil {
		return err
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(recipient).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := n.client.Im.Message.Create(ctx, req)
	if err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("channel", string(channel)),
			zap.String("recipient", recipient),
			zap.Error(err))
		return fmt.Errorf("failed to send notification: %w", err)
	}

	if !resp.Success() {
		n.logger.Error("Lark API returned failure",
			zap.String("recipient", recipient),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("lark API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	n.logger.Info("Notification sent",
		zap.String("channel", string(channel)),
		zap.String("recipient", recipient),
		zap.String("subject", subject))

	return nil
}

func textContent(text string) (string, error) {
	b, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("failed to encode message content: %w", err)
	}
	return string(b), nil
}

var _ port.Notifier = (*LarkNotifier)(nil)
