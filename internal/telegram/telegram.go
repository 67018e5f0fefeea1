package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"housingsearch/server/internal/models"
)

const defaultAPIURL = "https://api.telegram.org"

var ErrInvalidWebAppData = errors.New("invalid telegram data")

// webAppPayload is the body posted by the mini-app. Either the decoded user
// or the raw initData query string is present.
type webAppPayload struct {
	User     *models.TelegramUser `json:"user"`
	InitData string               `json:"initData"`
}

// ParseWebAppData extracts the Telegram user from a WebApp payload.
// The data is accepted as-is; the hash is not verified.
func ParseWebAppData(raw []byte) (*models.TelegramUser, error) {
	var payload webAppPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebAppData, err)
	}

	if payload.User != nil {
		return payload.User, nil
	}
	if payload.InitData == "" {
		return nil, nil
	}

	values, err := url.ParseQuery(payload.InitData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebAppData, err)
	}
	userJSON := values.Get("user")
	if userJSON == "" {
		return nil, nil
	}

	var user models.TelegramUser
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		return nil, fmt.Errorf("%w: user: %v", ErrInvalidWebAppData, err)
	}
	if authDate := values.Get("auth_date"); authDate != "" {
		if ts, err := strconv.ParseInt(authDate, 10, 64); err == nil {
			user.AuthDate = ts
		}
	}
	return &user, nil
}

// Service sends bot messages through the Telegram Bot API
type Service struct {
	logger  *logrus.Logger
	client  *http.Client
	token   string
	baseURL string
}

func NewService(token string, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{
		logger:  logger,
		token:   token,
		baseURL: defaultAPIURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SetBaseURL points the client at another Bot API host
func (s *Service) SetBaseURL(baseURL string) {
	s.baseURL = baseURL
}

// Enabled reports whether a bot token is configured
func (s *Service) Enabled() bool {
	return s != nil && s.token != ""
}

// SendMessage sends a message to the given chat
func (s *Service) SendMessage(ctx context.Context, chatID int64, message string) error {
	if !s.Enabled() {
		return nil
	}

	payload := map[string]interface{}{
		"chat_id":    chatID,
		"text":       message,
		"parse_mode": "HTML",
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to Telegram API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return errors.New("invalid bot token")
		case http.StatusBadRequest:
			return fmt.Errorf("invalid chat ID or message format: %s", string(body))
		case http.StatusForbidden:
			return errors.New("bot was blocked by the user")
		case http.StatusNotFound:
			return errors.New("bot not found")
		default:
			return fmt.Errorf("telegram API error (status %d): %s", resp.StatusCode, string(body))
		}
	}

	return nil
}

// NotifyLiked tells a user that the contact details of a liked listing are available
func (s *Service) NotifyLiked(ctx context.Context, telegramID int64, listing *models.Listing) error {
	if !s.Enabled() || listing == nil {
		return nil
	}

	message := fmt.Sprintf(
		"<b>Вам понравилось объявление</b>\n\n"+
			"🏠 %s\n"+
			"📍 %s\n"+
			"💰 %.0f ₽/мес\n\n"+
			"Контакты владельца теперь доступны в приложении.",
		listing.Title,
		listing.Address,
		listing.Price,
	)

	if err := s.SendMessage(ctx, telegramID, message); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"telegram_id": telegramID,
			"listing_id":  listing.ID,
		}).Error("Failed to send like notification")
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"telegram_id": telegramID,
		"listing_id":  listing.ID,
	}).Debug("Sent like notification")
	return nil
}
