package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// SMSResult is the provider-agnostic outcome of one SMS dispatch.
type SMSResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Provider  string `json:"provider"`
	Error     string `json:"error,omitempty"`
}

// SMSSender dispatches one message to one normalized phone number.
type SMSSender interface {
	Send(ctx context.Context, to, message string) (*SMSResult, error)
}

// NewSMSSenderFromEnv selects the configured provider. SMS_PROVIDER must be
// one of twilio, africastalking, or gateway.
func NewSMSSenderFromEnv() (SMSSender, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	switch provider := os.Getenv("SMS_PROVIDER"); provider {
	case "twilio":
		return &twilioSender{
			client:     client,
			accountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			authToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			from:       os.Getenv("TWILIO_FROM_NUMBER"),
		}, nil
	case "africastalking":
		return &africasTalkingSender{
			client:   client,
			apiURL:   os.Getenv("AT_SMS_URL"),
			username: os.Getenv("AT_USERNAME"),
			apiKey:   os.Getenv("AT_API_KEY"),
			senderID: os.Getenv("AT_SENDER_ID"),
		}, nil
	case "gateway":
		return &gatewaySender{
			client:   client,
			baseURL:  os.Getenv("SMS_GATEWAY_URL"),
			username: os.Getenv("SMS_GATEWAY_USER"),
			password: os.Getenv("SMS_GATEWAY_PASS"),
		}, nil
	case "":
		return nil, fmt.Errorf("SMS_PROVIDER is not set")
	default:
		return nil, fmt.Errorf("unknown SMS_PROVIDER %q", provider)
	}
}

// ── Twilio ───────────────────────────────────────────────────────────────────

type twilioSender struct {
	client     *http.Client
	accountSID string
	authToken  string
	from       string
}

func (s *twilioSender) Send(ctx context.Context, to, message string) (*SMSResult, error) {
	if s.accountSID == "" || s.authToken == "" {
		return nil, fmt.Errorf("twilio credentials are not configured")
	}

	normalized, err := NormalizePhone(to)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("To", normalized)
	form.Set("From", s.from)
	form.Set("Body", message)

	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create twilio request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twilio request failed: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		SID          string `json:"sid"`
		ErrorMessage string `json:"error_message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode twilio response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return &SMSResult{Provider: "twilio", Error: body.ErrorMessage},
			fmt.Errorf("twilio returned status %d: %s", resp.StatusCode, body.ErrorMessage)
	}
	return &SMSResult{Success: true, MessageID: body.SID, Provider: "twilio"}, nil
}

// ── Africa's Talking ─────────────────────────────────────────────────────────

type africasTalkingSender struct {
	client   *http.Client
	apiURL   string
	username string
	apiKey   string
	senderID string
}

func (s *africasTalkingSender) Send(ctx context.Context, to, message string) (*SMSResult, error) {
	if s.apiURL == "" || s.apiKey == "" {
		return nil, fmt.Errorf("africastalking credentials are not configured")
	}

	normalized, err := NormalizePhone(to)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("username", s.username)
	form.Set("to", normalized)
	form.Set("message", message)
	form.Set("from", s.senderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create SMS request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("apikey", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("africastalking request failed: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		SMSMessageData struct {
			Message    string `json:"Message"`
			Recipients []struct {
				StatusCode int    `json:"statusCode"`
				Status     string `json:"status"`
				MessageID  string `json:"messageId"`
			} `json:"Recipients"`
		} `json:"SMSMessageData"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode africastalking response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &SMSResult{Provider: "africastalking", Error: body.SMSMessageData.Message},
			fmt.Errorf("africastalking returned status %d: %s", resp.StatusCode, body.SMSMessageData.Message)
	}

	result := &SMSResult{Success: true, Provider: "africastalking"}
	if len(body.SMSMessageData.Recipients) > 0 {
		result.MessageID = body.SMSMessageData.Recipients[0].MessageID
	}
	return result, nil
}

// ── Generic JSON gateway ─────────────────────────────────────────────────────

// gatewaySender talks to a self-hosted messaging gateway: JSON body, basic
// auth.
type gatewaySender struct {
	client   *http.Client
	baseURL  string
	username string
	password string
}

func (s *gatewaySender) Send(ctx context.Context, to, message string) (*SMSResult, error) {
	if s.baseURL == "" {
		return nil, fmt.Errorf("sms gateway URL is not configured")
	}

	normalized, err := NormalizePhone(to)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]string{
		"phone":   normalized,
		"message": message,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(s.baseURL, "/")+"/send/message", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	auth := base64.StdEncoding.EncodeToString([]byte(s.username + ":" + s.password))
	req.Header.Set("Authorization", "Basic "+auth)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &SMSResult{Provider: "gateway", Error: string(raw)},
			fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			MessageID string `json:"message_id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return &SMSResult{Success: body.Success, MessageID: body.Data.MessageID, Provider: "gateway"}, nil
}
