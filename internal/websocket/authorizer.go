package websocket

import (
	"context"

	"cardcircle/internal/domain/message"
	"cardcircle/internal/events"
	"cardcircle/internal/proxy"

	"github.com/google/uuid"
)

// ChannelAuthorizer applies the same participant check as message listing.
type ChannelAuthorizer struct {
	access *proxy.AccessControl
}

func NewChannelAuthorizer(access *proxy.AccessControl) *ChannelAuthorizer {
	return &ChannelAuthorizer{access: access}
}

// CanSubscribe returns the channel name when userID may follow the container.
func (a *ChannelAuthorizer) CanSubscribe(ctx context.Context, userID uuid.UUID, containerType message.ContainerType, containerID uuid.UUID) (string, error) {
	if err := a.access.CanAccessContainer(ctx, userID, containerType, containerID); err != nil {
		return "", err
	}
	return a.Channel(containerType, containerID), nil
}

func (a *ChannelAuthorizer) Channel(containerType message.ContainerType, containerID uuid.UUID) string {
	return events.ContainerChannel(containerType, containerID)
}
