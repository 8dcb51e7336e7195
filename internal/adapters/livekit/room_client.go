package livekit

import (
	"context"
	"fmt"
	"time"

	"github.com/dialworks/outbound-call-service/pkg/logger"
	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"go.uber.org/zap"
)

// RoomClient wraps the LiveKit room service API for call monitoring:
// room creation/deletion, presence queries, and access tokens.
type RoomClient struct {
	config *LiveKitConfig
	rooms  *lksdk.RoomServiceClient
}

// NewRoomClient creates a new LiveKit room client
func NewRoomClient(config *LiveKitConfig) (*RoomClient, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid LiveKit config: %w", err)
	}

	return &RoomClient{
		config: config,
		rooms:  lksdk.NewRoomServiceClient(config.ServerURL, config.APIKey, config.APISecret),
	}, nil
}

// CreateRoom creates a media room with the given metadata. The empty timeout
// lets abandoned rooms expire server-side. Creating a room that already
// exists is not an error on the LiveKit side, so this is safe to repeat.
func (c *RoomClient) CreateRoom(ctx context.Context, name, metadata string, emptyTimeoutSecs uint32) error {
	_, err := c.rooms.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:         name,
		Metadata:     metadata,
		EmptyTimeout: emptyTimeoutSecs,
	})
	if err != nil {
		return fmt.Errorf("failed to create room %s: %w", name, err)
	}
	return nil
}

// ListParticipants returns the identities currently connected to the room.
func (c *RoomClient) ListParticipants(ctx context.Context, name string) ([]string, error) {
	resp, err := c.rooms.ListParticipants(ctx, &livekit.ListParticipantsRequest{Room: name})
	if err != nil {
		return nil, fmt.Errorf("failed to list participants in %s: %w", name, err)
	}

	identities := make([]string, 0, len(resp.Participants))
	for _, p := range resp.Participants {
		identities = append(identities, p.Identity)
	}
	return identities, nil
}

// RoomExists reports whether a room with the given name is currently live.
func (c *RoomClient) RoomExists(ctx context.Context, name string) (bool, error) {
	resp, err := c.rooms.ListRooms(ctx, &livekit.ListRoomsRequest{Names: []string{name}})
	if err != nil {
		return false, fmt.Errorf("failed to list rooms: %w", err)
	}
	return len(resp.Rooms) > 0, nil
}

// DeleteRoom tears down a room and disconnects everyone in it.
func (c *RoomClient) DeleteRoom(ctx context.Context, name string) error {
	_, err := c.rooms.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: name})
	if err != nil {
		return fmt.Errorf("failed to delete room %s: %w", name, err)
	}
	return nil
}

// Connected checks API reachability by listing rooms.
func (c *RoomClient) Connected(ctx context.Context) bool {
	if _, err := c.rooms.ListRooms(ctx, &livekit.ListRoomsRequest{}); err != nil {
		logger.Base().Warn("LiveKit server not reachable", zap.Error(err))
		return false
	}
	return true
}

// GenerateAgentToken generates an access token the AI agent joins the room with.
func (c *RoomClient) GenerateAgentToken(roomName, identity string) (string, error) {
	at := auth.NewAccessToken(c.config.APIKey, c.config.APISecret)

	canPublish := true
	canSubscribe := true
	grant := &auth.VideoGrant{
		RoomJoin:     true,
		Room:         roomName,
		CanPublish:   &canPublish,
		CanSubscribe: &canSubscribe,
	}

	at.SetVideoGrant(grant).
		SetIdentity(identity).
		SetName("AI Agent").
		SetValidFor(2 * time.Hour)

	token, err := at.ToJWT()
	if err != nil {
		return "", fmt.Errorf("failed to generate JWT: %w", err)
	}
	return token, nil
}

// GenerateListenToken generates a subscribe-only token for monitoring a live
// call from the dashboard.
func (c *RoomClient) GenerateListenToken(roomName string) (string, string, error) {
	identity := fmt.Sprintf("listener-%d", time.Now().UnixMilli())

	at := auth.NewAccessToken(c.config.APIKey, c.config.APISecret)

	canPublish := false
	canSubscribe := true
	canPublishData := false
	grant := &auth.VideoGrant{
		RoomJoin:       true,
		Room:           roomName,
		CanPublish:     &canPublish,
		CanSubscribe:   &canSubscribe,
		CanPublishData: &canPublishData,
	}

	at.SetVideoGrant(grant).
		SetIdentity(identity).
		SetName("Call Monitor").
		SetValidFor(2 * time.Hour)

	token, err := at.ToJWT()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate JWT: %w", err)
	}
	return token, identity, nil
}

// ServerURL returns the configured LiveKit server URL.
func (c *RoomClient) ServerURL() string {
	return c.config.ServerURL
}
