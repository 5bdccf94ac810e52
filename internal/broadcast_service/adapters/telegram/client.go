package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aradsms/broadcast_gate/internal/broadcast_service/domain"
)

const (
	// CallbackGetText is the callback payload of the inline Send button.
	CallbackGetText = "GET_TEXT"
	sendButtonLabel = "📩 Send"
)

// APIError is a Bot API rejection such as "Forbidden: bot was blocked by the user".
type APIError struct {
	Method      string
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed: status %d: %s", e.Method, e.StatusCode, e.Description)
}

// Client talks to the Telegram Bot API over HTTPS and implements domain.Transport.
type Client struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewClient(logger *slog.Logger, baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		logger:     logger.With("component", "telegram_client"),
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

// SendPhoto re-sends an uploaded photo by file id, optionally with the inline Send button.
func (c *Client) SendPhoto(ctx context.Context, to domain.RecipientID, photo domain.PhotoRef, caption string, withAffordance bool) error {
	req := sendPhotoRequest{ChatID: int64(to), Photo: photo.FileID, Caption: caption}
	if withAffordance {
		req.ReplyMarkup = sendButtonMarkup()
	}
	var msg Message
	return c.call(ctx, "sendPhoto", req, &msg)
}

func (c *Client) SendText(ctx context.Context, to domain.RecipientID, text string) error {
	var msg Message
	return c.call(ctx, "sendMessage", sendMessageRequest{ChatID: int64(to), Text: text}, &msg)
}

// SendTextWithButton sends text carrying the inline Send button.
func (c *Client) SendTextWithButton(ctx context.Context, to domain.RecipientID, text string) error {
	var msg Message
	req := sendMessageRequest{ChatID: int64(to), Text: text, ReplyMarkup: sendButtonMarkup()}
	return c.call(ctx, "sendMessage", req, &msg)
}

// AnswerCallback acknowledges a button press so the client stops its spinner.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	var ok bool
	return c.call(ctx, "answerCallbackQuery", answerCallbackRequest{CallbackQueryID: callbackID, Text: text}, &ok)
}

// GetUpdates long-polls for updates with id >= offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]Update, error) {
	var updates []Update
	req := getUpdatesRequest{
		Offset:         offset,
		Timeout:        timeoutSeconds,
		AllowedUpdates: []string{"message", "callback_query"},
	}
	if err := c.call(ctx, "getUpdates", req, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response (status %d): %w", method, httpResp.StatusCode, err)
	}

	resp := apiResponse[json.RawMessage]{}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		c.logger.WarnContext(ctx, "Unparseable Bot API response", "method", method, "status_code", httpResp.StatusCode)
		return &APIError{Method: method, StatusCode: httpResp.StatusCode, Description: "unparseable response"}
	}
	if !resp.OK {
		code := resp.ErrorCode
		if code == 0 {
			code = httpResp.StatusCode
		}
		return &APIError{Method: method, StatusCode: code, Description: resp.Description}
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

func sendButtonMarkup() *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{
		InlineKeyboard: [][]InlineKeyboardButton{{{Text: sendButtonLabel, CallbackData: CallbackGetText}}},
	}
}

func (c *Client) methodURL(method string) string {
	return c.baseURL + "/bot" + c.token + "/" + method
}
