package domain

// Role is the write-once identity a connection receives during the handshake.
type Role int

const (
	RoleUnidentified Role = iota
	RoleProducer
	RoleConsumer
)

func (r Role) String() string {
	switch r {
	case RoleProducer:
		return "producer"
	case RoleConsumer:
		return "consumer"
	default:
		return "unidentified"
	}
}

// ClientType is the role a client declares in its identify message.
type ClientType string

const (
	ClientTypeProducer ClientType = "producer"
	ClientTypeConsumer ClientType = "consumer"
)

// Role maps a declared client type to the role it binds.
func (t ClientType) Role() (Role, bool) {
	switch t {
	case ClientTypeProducer:
		return RoleProducer, true
	case ClientTypeConsumer:
		return RoleConsumer, true
	default:
		return RoleUnidentified, false
	}
}

// RelayStats is a point-in-time view of the connection registry.
type RelayStats struct {
	ProducerConnected bool
	ProducerName      string
	Consumers         int
	Connections       int
}
