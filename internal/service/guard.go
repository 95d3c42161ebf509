package service

import (
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/apperr"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/model"
)

// HostGuard decides whether an actor hosts an event. It holds no state.
type HostGuard struct{}

// AssertIsHost fails with a not-host error unless actorID hosts event.
func (HostGuard) AssertIsHost(event *model.Event, actorID string) error {
	if event == nil || actorID == "" || event.HostID != actorID {
		return apperr.ErrNotHost
	}
	return nil
}
