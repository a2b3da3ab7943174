package bootstrap

import (
	"cardcircle/config"
	"cardcircle/internal/events"
	"cardcircle/internal/proxy"
	"cardcircle/internal/repository"
	"cardcircle/internal/services"
	"cardcircle/pkg/logger"
)

type Services struct {
	Access     *proxy.AccessControl
	Membership *services.MembershipService
	Directs    *services.DirectService
	Messages   *services.MessageService
}

func NewServices(cfg *config.Config, stores repository.Stores, dir services.UserDirectory, objects services.ObjectStore, bus events.Bus, l *logger.Logger) *Services {
	access := proxy.NewAccessControl(stores.Groups, stores.Directs)

	membership := services.DefaultMembershipConfig()
	if cfg.PhotoMaxBytes > 0 {
		membership.PhotoMaxBytes = cfg.PhotoMaxBytes
	}
	if cfg.UploadTimeout > 0 {
		membership.UploadTimeout = cfg.UploadTimeout
	}
	if cfg.DirectoryTimeout > 0 {
		membership.DirectoryTimeout = cfg.DirectoryTimeout
	}

	return &Services{
		Access:     access,
		Membership: services.NewMembershipService(stores.Groups, dir, objects, membership, l),
		Directs:    services.NewDirectService(stores.Directs, dir, membership.DirectoryTimeout, l),
		Messages: services.NewMessageService(stores, access, bus, services.MessageConfig{
			PageDefault: cfg.MessagePageDefault,
			PageMax:     cfg.MessagePageMax,
		}, l),
	}
}
