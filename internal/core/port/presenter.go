package port

import (
	"time"

	"github.com/Wyydra/interbot/internal/core/domain"
)

// Presenter is the UI collaborator. Calls are made from the coordinator's loop
// and must not block.
type Presenter interface {
	UpdateUserCapability(self domain.UserInfo)
	UpdateFriendCapability(friend domain.UserInfo)
	UpdateUserProperties(self domain.UserInfo)
	UpdateFriendProperties(friend domain.UserInfo)

	StartControl(robot string)
	EndControl(remote bool)
	StartRobotVideo(streamURL string)
	EndRobotVideo(remote bool)
	CallStatusChanged(t domain.CallTransition)
	RobotLatency(d time.Duration)

	Alert(msg string)
	SystemLogout()
}
