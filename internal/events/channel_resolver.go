package events

import (
	"cardcircle/internal/domain/message"

	"github.com/google/uuid"
)

// ChannelResolver determines which Redis channels to publish to
type ChannelResolver interface {
	ResolveChannels(event Event) []string
}

// ContainerChannelResolver routes message events to their container's channel.
type ContainerChannelResolver struct{}

func NewContainerChannelResolver() *ContainerChannelResolver {
	return &ContainerChannelResolver{}
}

func (r *ContainerChannelResolver) ResolveChannels(event Event) []string {
	switch e := event.(type) {
	case *MessageAppendedEvent:
		return []string{ContainerChannel(e.ContainerType, e.ContainerID)}
	}
	return nil
}

func ContainerChannel(containerType message.ContainerType, containerID uuid.UUID) string {
	if containerType == message.ContainerDirect {
		return ChannelPrefixDirect + containerID.String()
	}
	return ChannelPrefixGroup + containerID.String()
}
