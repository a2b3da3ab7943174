// Command repair restores the owner-is-member invariant on stored groups and
// can delete a group with its history.
package main

import (
	"context"
	"flag"
	"log"

	"cardcircle/config"
	"cardcircle/internal/bootstrap"
	"cardcircle/internal/services"
	"cardcircle/internal/storage"
	"cardcircle/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	deleteID := flag.String("delete", "", "delete the group with this id and its messages")
	flag.Parse()

	cfg := config.LoadConfig()
	l := logger.New(cfg.AppEnv)
	defer l.Sync()

	ctx := context.Background()
	backend, err := bootstrap.Open(ctx, cfg, l)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer backend.Close(l)

	membership := services.NewMembershipService(backend.Stores.Groups, backend.Directory, storage.DisabledStore{}, services.DefaultMembershipConfig(), l)

	if *deleteID != "" {
		groupID, err := uuid.Parse(*deleteID)
		if err != nil {
			log.Fatalf("Invalid group id %q", *deleteID)
		}
		if err := membership.DeleteGroup(ctx, groupID); err != nil {
			log.Fatalf("Delete failed: %v", err)
		}
		l.Logger.Info("group deleted", zap.String("group_id", groupID.String()))
		return
	}

	repaired, err := membership.RepairAll(ctx)
	if err != nil {
		log.Fatalf("Repair failed: %v", err)
	}
	for _, id := range repaired {
		l.Logger.Info("group repaired", zap.String("group_id", id.String()))
	}
	l.Infof("repair finished, %d group(s) changed", len(repaired))
}
