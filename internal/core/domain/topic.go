package domain

// Topics of the shared channel.
const (
	TopicUserEvent    = "event:user_event"
	TopicSessionPing  = "event:session/ping"
	TopicSessionPong  = "event:session/pong"
	TopicControlPing  = "event:robot/control/ping"
	TopicControlPong  = "event:robot/control/pong"
	TopicBaseVelocity = "event:robot/base/velocity"
	TopicVideoPanTilt = "event:robot/video/panTilt"
)
