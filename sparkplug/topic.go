package sparkplug

import (
	"strings"

	"github.com/juju/errors"
)

const Namespace = "spBv1.0"

type MessageType string

const (
	NodeBirth     MessageType = "NBIRTH"
	NodeDeath     MessageType = "NDEATH"
	NodeData      MessageType = "NDATA"
	NodeCommand   MessageType = "NCMD"
	DeviceBirth   MessageType = "DBIRTH"
	DeviceDeath   MessageType = "DDEATH"
	DeviceData    MessageType = "DDATA"
	DeviceCommand MessageType = "DCMD"
	StateMessage  MessageType = "STATE"
)

func (t MessageType) Valid() bool {
	switch t {
	case NodeBirth, NodeDeath, NodeData, NodeCommand,
		DeviceBirth, DeviceDeath, DeviceData, DeviceCommand:
		return true
	}
	return false
}

// Topic is namespace/group_id/message_type/edge_node_id[/device_id]
type Topic struct {
	Namespace string
	Group     string
	Type      MessageType
	Node      string
	Device    string
}

func NodeTopic(group string, t MessageType, node string) Topic {
	return Topic{Namespace: Namespace, Group: group, Type: t, Node: node}
}

func (t Topic) String() string {
	s := t.Namespace + "/" + t.Group + "/" + string(t.Type) + "/" + t.Node
	if t.Device != "" {
		s += "/" + t.Device
	}
	return s
}

func ParseTopic(s string) (Topic, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 4 && len(parts) != 5 {
		return Topic{}, errors.NotValidf("sparkplug topic=%s parts=%d", s, len(parts))
	}
	t := Topic{
		Namespace: parts[0],
		Group:     parts[1],
		Type:      MessageType(parts[2]),
		Node:      parts[3],
	}
	if len(parts) == 5 {
		t.Device = parts[4]
	}
	if t.Namespace != Namespace {
		return t, errors.NotValidf("sparkplug topic=%s namespace=%s", s, t.Namespace)
	}
	if !t.Type.Valid() {
		return t, errors.NotValidf("sparkplug topic=%s message_type=%s", s, t.Type)
	}
	if t.Group == "" || t.Node == "" {
		return t, errors.NotValidf("sparkplug topic=%s empty group or node", s)
	}
	return t, nil
}
