package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/brightcare/dental-booking-bot/internal/appointments"
	"github.com/brightcare/dental-booking-bot/pkg/logging"
)

const defaultRazorpayBaseURL = "https://api.razorpay.com"

// Client talks to the Razorpay payment-links API.
type Client struct {
	baseURL     string
	keyID       string
	keySecret   string
	amountPaise int64
	callbackURL string
	httpClient  *http.Client
	logger      *logging.Logger
}

// ClientConfig configures the Razorpay client.
type ClientConfig struct {
	BaseURL     string
	KeyID       string
	KeySecret   string
	AmountPaise int64
	CallbackURL string
	Timeout     time.Duration
	HTTPClient  *http.Client
	Logger      *logging.Logger
}

// NewClient creates a Razorpay payment-links client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultRazorpayBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	amount := cfg.AmountPaise
	if amount <= 0 {
		amount = 10000
	}
	return &Client{
		baseURL:     baseURL,
		keyID:       cfg.KeyID,
		keySecret:   cfg.KeySecret,
		amountPaise: amount,
		callbackURL: cfg.CallbackURL,
		httpClient:  httpClient,
		logger:      logger,
	}
}

type linkCustomer struct {
	Name    string `json:"name,omitempty"`
	Contact string `json:"contact,omitempty"`
}

type linkNotify struct {
	SMS   bool `json:"sms"`
	Email bool `json:"email"`
}

type createLinkRequest struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	ReferenceID string            `json:"reference_id"`
	Description string            `json:"description"`
	Customer    linkCustomer      `json:"customer"`
	Notify      linkNotify        `json:"notify"`
	Notes       map[string]string `json:"notes"`
	CallbackURL string            `json:"callback_url,omitempty"`
}

type createLinkResponse struct {
	ID       string `json:"id"`
	ShortURL string `json:"short_url"`
	Status   string `json:"status"`
}

type apiErrorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreatePaymentLink issues a hosted payment link for the appointment's
// consultation fee. The appointment id rides in the link notes so the
// webhook can find the row later.
func (c *Client) CreatePaymentLink(ctx context.Context, appt *appointments.Appointment) (string, error) {
	reqBody := createLinkRequest{
		Amount:      c.amountPaise,
		Currency:    "INR",
		ReferenceID: uuid.NewString(),
		Description: fmt.Sprintf("Consultation fee for appointment %s", appt.ID),
		Customer:    linkCustomer{Name: appt.PatientName, Contact: appt.Phone},
		Notify:      linkNotify{},
		Notes:       map[string]string{"appointmentId": appt.ID},
		CallbackURL: c.callbackURL,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("razorpay: marshal request: %w", err)
	}

	url := c.baseURL + "/v1/payment_links"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("razorpay: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("razorpay: create payment link: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("razorpay: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Description != "" {
			return "", fmt.Errorf("razorpay: payment link rejected (%d %s): %s",
				resp.StatusCode, apiErr.Error.Code, apiErr.Error.Description)
		}
		return "", fmt.Errorf("razorpay: payment link rejected with status %d", resp.StatusCode)
	}

	var link createLinkResponse
	if err := json.Unmarshal(body, &link); err != nil {
		return "", fmt.Errorf("razorpay: decode response: %w", err)
	}
	if link.ShortURL == "" {
		return "", fmt.Errorf("razorpay: response missing short_url")
	}

	c.logger.Info("razorpay: payment link created", "appointment_id", appt.ID, "link_id", link.ID)
	return link.ShortURL, nil
}
