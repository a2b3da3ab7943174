package memory_test

import (
	"context"
	"testing"

	"cardcircle/internal/repository/memory"
	"cardcircle/internal/repository/repotest"

	"github.com/google/uuid"
)

func TestStoreSuite(t *testing.T) {
	stores := memory.NewStores()
	groups := stores.Groups.(*memory.GroupStore)
	repotest.Run(t, repotest.Harness{
		Stores: stores,
		Corrupt: func(_ context.Context, groupID uuid.UUID, members, admins []uuid.UUID) error {
			groups.Corrupt(groupID, members, admins)
			return nil
		},
	})
}
