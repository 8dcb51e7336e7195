package twilio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dialworks/outbound-call-service/pkg/logger"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// Dialer places outbound PSTN calls through the Twilio REST API. It is the
// direct-dial path used by test calls when no SIP trunk is configured.
type Dialer struct {
	client     *twilio.RestClient
	fromNumber string
}

// NewDialer creates a new Twilio dialer. accountSID and authToken are required.
func NewDialer(accountSID, authToken, fromNumber string) (*Dialer, error) {
	if accountSID == "" || authToken == "" {
		return nil, errors.New("twilio credentials are required")
	}

	return &Dialer{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		fromNumber: fromNumber,
	}, nil
}

// Dial creates an outbound Twilio call. Numbers must be E.164 with a leading
// plus sign. Returns the Twilio call SID as the dial handle.
func (d *Dialer) Dial(ctx context.Context, toNumber, fromNumber, roomName string) (string, error) {
	if !strings.HasPrefix(toNumber, "+") {
		return "", fmt.Errorf("phone number must include country code (e.g., +1234567890): %s", toNumber)
	}
	if fromNumber == "" {
		fromNumber = d.fromNumber
	}
	if !strings.HasPrefix(fromNumber, "+") {
		return "", fmt.Errorf("from number must include country code (e.g., +1234567890): %s", fromNumber)
	}

	params := &api.CreateCallParams{}
	params.SetTo(toNumber)
	params.SetFrom(fromNumber)
	params.SetTwiml(`<Response><Say>Hello! This is a test call from your AI agent. The call is working correctly.</Say><Pause length="2"/><Say>Thank you for testing the system. Goodbye!</Say></Response>`)

	resp, err := d.client.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("failed to create call: %w", err)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	logger.Base().Info("Twilio call created",
		zap.String("sid", sid),
		zap.String("to", toNumber),
		zap.String("from", fromNumber),
		zap.String("room_name", roomName))
	return sid, nil
}
