// Package twiliosms sends outbound SMS and provisions tenant phone numbers
// through the Twilio REST API.
package twiliosms

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// Sender is the interface handlers depend on for SMS delivery and number
// provisioning; satisfied by Client and by test doubles.
type Sender interface {
	SendSMS(ctx context.Context, from, to, body string) error
	SearchAvailableNumber(ctx context.Context, areaCode string) (string, error)
	PurchaseNumber(ctx context.Context, phoneNumber string) error
}

// Opts holds configurable options for the Twilio client.
type Opts struct {
	AccountSID string
	AuthToken  string
}

// Option configures Opts.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// restAPI defines the Twilio operations Client uses, for test seams.
type restAPI interface {
	CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error)
	ListAvailablePhoneNumberLocal(countryCode string, params *api.ListAvailablePhoneNumberLocalParams) ([]api.ApiV2010AvailablePhoneNumberLocal, error)
	CreateIncomingPhoneNumber(params *api.CreateIncomingPhoneNumberParams) (*api.ApiV2010IncomingPhoneNumber, error)
}

// Client implements Sender against the Twilio REST API.
type Client struct {
	rest restAPI
}

var _ Sender = (*Client)(nil)

// NewClient initializes a Twilio client. Credentials come from options or,
// when absent, from TWILIO_ACCOUNT_SID / TWILIO_AUTH_TOKEN.
func NewClient(options ...Option) (*Client, error) {
	opts := Opts{
		AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
	}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.AccountSID == "" || opts.AuthToken == "" {
		return nil, fmt.Errorf("twilio credentials not set")
	}
	rc := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: opts.AccountSID,
		Password: opts.AuthToken,
	})
	return &Client{rest: rc.Api}, nil
}

// SendSMS sends one SMS message from a tenant's number to a contact.
func (c *Client) SendSMS(ctx context.Context, from, to, body string) error {
	params := &api.CreateMessageParams{}
	params.SetFrom(from)
	params.SetTo(to)
	params.SetBody(body)
	msg, err := c.rest.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send SMS to %s: %w", to, err)
	}
	sid := ""
	if msg.Sid != nil {
		sid = *msg.Sid
	}
	slog.Debug("Client.SendSMS: message accepted", "to", to, "sid", sid)
	return nil
}

// SearchAvailableNumber returns one purchasable local number in the given
// area code.
func (c *Client) SearchAvailableNumber(ctx context.Context, areaCode string) (string, error) {
	code, err := strconv.Atoi(areaCode)
	if err != nil {
		return "", fmt.Errorf("invalid area code %q: %w", areaCode, err)
	}
	params := &api.ListAvailablePhoneNumberLocalParams{}
	params.SetAreaCode(code)
	params.SetLimit(1)
	numbers, err := c.rest.ListAvailablePhoneNumberLocal("US", params)
	if err != nil {
		return "", fmt.Errorf("failed to search numbers in area code %s: %w", areaCode, err)
	}
	if len(numbers) == 0 || numbers[0].PhoneNumber == nil {
		return "", fmt.Errorf("no available numbers in area code %s", areaCode)
	}
	return *numbers[0].PhoneNumber, nil
}

// PurchaseNumber buys the given phone number for the account.
func (c *Client) PurchaseNumber(ctx context.Context, phoneNumber string) error {
	params := &api.CreateIncomingPhoneNumberParams{}
	params.SetPhoneNumber(phoneNumber)
	if _, err := c.rest.CreateIncomingPhoneNumber(params); err != nil {
		return fmt.Errorf("failed to purchase number %s: %w", phoneNumber, err)
	}
	slog.Info("Client.PurchaseNumber: number purchased", "phoneNumber", phoneNumber)
	return nil
}

// MockClient records calls for tests.
type MockClient struct {
	SentMessages     []SentMessage
	PurchasedNumbers []string
	AvailableNumber  string
	SendErr          error
	SearchErr        error
	PurchaseErr      error
}

// SentMessage captures one SendSMS call.
type SentMessage struct {
	From string
	To   string
	Body string
}

func NewMockClient() *MockClient {
	return &MockClient{AvailableNumber: "+15555550100"}
}

var _ Sender = (*MockClient)(nil)

func (m *MockClient) SendSMS(ctx context.Context, from, to, body string) error {
	if m.SendErr != nil {
		return m.SendErr
	}
	m.SentMessages = append(m.SentMessages, SentMessage{From: from, To: to, Body: body})
	return nil
}

func (m *MockClient) SearchAvailableNumber(ctx context.Context, areaCode string) (string, error) {
	if m.SearchErr != nil {
		return "", m.SearchErr
	}
	return m.AvailableNumber, nil
}

func (m *MockClient) PurchaseNumber(ctx context.Context, phoneNumber string) error {
	if m.PurchaseErr != nil {
		return m.PurchaseErr
	}
	m.PurchasedNumbers = append(m.PurchasedNumbers, phoneNumber)
	return nil
}
