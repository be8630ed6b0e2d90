package domain

import "encoding/json"

type UserType string

const (
	UserHuman UserType = "human"
	UserRobot UserType = "robot"
)

type Status string

const (
	StatusOffline Status = "Offline"
	StatusOnline  Status = "Online"
)

// Capability says a user can take Role in Activity.
type Capability struct {
	Activity ActivityName `json:"activity" yaml:"activity"`
	Role     RoleName     `json:"role" yaml:"role"`
}

// UserInfo is the cached view of a user: the logged in user or one of its friends.
type UserInfo struct {
	Username     string         `json:"username" yaml:"username"`
	Type         UserType       `json:"type" yaml:"type"`
	Status       Status         `json:"status" yaml:"status"`
	Capabilities []Capability   `json:"capabilities" yaml:"capabilities"`
	Properties   map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

func (u UserInfo) HasCapability(activity ActivityName, role RoleName) bool {
	for _, c := range u.Capabilities {
		if c.Activity == activity && c.Role == role {
			return true
		}
	}
	return false
}

// CanBeControlled reports whether u is a robot that accepts a controller.
func (u UserInfo) CanBeControlled() bool {
	if u.Type != UserRobot {
		return false
	}
	return u.HasCapability(ActivityControl, RoleRobot)
}

func (u UserInfo) CanStreamVideo() bool {
	return u.HasCapability(ActivityVideoStream, RoleSender)
}

func (u UserInfo) CanBeWebRTCPeer() bool {
	return u.HasCapability(ActivityWebRTC, RoleCallee)
}

// CanJoin reports whether u can be invited into the activity kind negotiates.
func (u UserInfo) CanJoin(kind ActivityKind) bool {
	switch kind {
	case KindControl:
		return u.CanBeControlled()
	case KindVideo:
		return u.CanStreamVideo()
	case KindCall:
		return u.CanBeWebRTCPeer()
	}
	return false
}

// Clone returns a copy that shares nothing mutable with u.
func (u UserInfo) Clone() UserInfo {
	c := u
	c.Capabilities = append([]Capability(nil), u.Capabilities...)
	if u.Properties != nil {
		c.Properties = make(map[string]any, len(u.Properties))
		for k, v := range u.Properties {
			c.Properties[k] = v
		}
	}
	return c
}

const PropertyNetworkInterfaces = "NetworkInterfaces"

type networkInterface struct {
	Addresses []struct {
		Version string `json:"version"`
		Address string `json:"address"`
	} `json:"addresses"`
}

// RobotLocalIP returns the first IPv4 address a robot reported in its
// NetworkInterfaces property, or "".
func RobotLocalIP(properties map[string]any) string {
	v, ok := properties[PropertyNetworkInterfaces]
	if !ok {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	var ifaces []networkInterface
	if err := json.Unmarshal(b, &ifaces); err != nil {
		return ""
	}
	for _, iface := range ifaces {
		for _, addr := range iface.Addresses {
			if addr.Version == "IPv4" {
				return addr.Address
			}
		}
	}
	return ""
}
