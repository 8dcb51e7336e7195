package livekit

import (
	"context"
	"errors"
	"fmt"

	"github.com/dialworks/outbound-call-service/pkg/logger"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"go.uber.org/zap"
)

// SIPDialer places outbound calls by creating a SIP participant on the
// configured trunk, bridging the PSTN leg into the media room.
type SIPDialer struct {
	config *LiveKitConfig
	sip    *lksdk.SIPClient
}

// NewSIPDialer creates a new SIP trunk dialer
func NewSIPDialer(config *LiveKitConfig) (*SIPDialer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid LiveKit config: %w", err)
	}
	if config.SIPTrunkID == "" {
		return nil, errors.New("LiveKit SIP trunk ID is required")
	}

	return &SIPDialer{
		config: config,
		sip:    lksdk.NewSIPClient(config.ServerURL, config.APIKey, config.APISecret),
	}, nil
}

// Dial bridges toNumber into roomName through the SIP trunk. The caller ID is
// owned by the trunk configuration, so fromNumber is informational here. The
// phone number doubles as the participant identity, which is how the call
// monitor tells the customer apart from the agent.
func (d *SIPDialer) Dial(ctx context.Context, toNumber, fromNumber, roomName string) (string, error) {
	info, err := d.sip.CreateSIPParticipant(ctx, &livekit.CreateSIPParticipantRequest{
		SipTrunkId:          d.config.SIPTrunkID,
		SipCallTo:           toNumber,
		RoomName:            roomName,
		ParticipantIdentity: toNumber,
		ParticipantName:     "Phone Caller",
		PlayDialtone:        true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create SIP participant: %w", err)
	}

	logger.Base().Info("SIP participant created",
		zap.String("room_name", roomName),
		zap.String("to", toNumber),
		zap.String("sip_call_id", info.SipCallId))
	return info.SipCallId, nil
}
