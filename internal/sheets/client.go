package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/brightcare/dental-booking-bot/pkg/logging"
)

// Sheet ranges used by the clinic workbook.
const (
	doctorRange       = "Doctor!A2:E"
	appointmentsRange = "Appointments!A2:O"
	idColumnRange     = "Appointments!A:A"
)

// Client wraps the Google Sheets API for the clinic workbook. Doctors and
// appointments live in two tabs of one spreadsheet; every read hits the API
// so the data is always current.
type Client struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	logger        *logging.Logger
}

// NewClient authenticates with a service account and returns a client bound
// to one spreadsheet.
func NewClient(ctx context.Context, spreadsheetID, serviceAccountEmail, privateKey string, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("sheets: spreadsheet id is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	conf := &jwt.Config{
		Email:      serviceAccountEmail,
		PrivateKey: []byte(privateKey),
		Scopes:     []string{sheetsapi.SpreadsheetsScope},
		TokenURL:   google.JWTTokenURL,
	}

	svc, err := sheetsapi.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("sheets: failed to create service: %w", err)
	}

	return &Client{svc: svc, spreadsheetID: spreadsheetID, logger: logger}, nil
}

// NewClientWithService injects a prebuilt service, used in tests.
func NewClientWithService(svc *sheetsapi.Service, spreadsheetID string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, logger: logger}
}

func (c *Client) readRange(ctx context.Context, rng string) ([][]interface{}, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheets: read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (c *Client) writeRange(ctx context.Context, rng string, values [][]interface{}) error {
	_, err := c.svc.Spreadsheets.Values.
		Update(c.spreadsheetID, rng, &sheetsapi.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets: write %s: %w", rng, err)
	}
	return nil
}
