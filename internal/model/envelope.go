package model

type (
	// Envelope is the routed unit of traffic. Data stays opaque to the
	// station unless the station itself is the receiver.
	Envelope struct {
		Sender    ID          `json:"sender"`
		Receiver  ID          `json:"receiver"`
		Group     ID          `json:"group,omitempty"`
		Type      ContentType `json:"type"`
		Time      int64       `json:"time,omitempty"`
		Data      []byte      `json:"data"`
		Key       []byte      `json:"key,omitempty"` // ephemeral X25519 public key
		Signature []byte      `json:"signature"`
		Meta      *Meta       `json:"meta,omitempty"`
	}
)

// Destination is the group for group messages, the receiver otherwise.
func (e *Envelope) Destination() ID {
	if e.Group != "" {
		return e.Group
	}
	return e.Receiver
}

func (e *Envelope) IsBroadcast() bool {
	if e.Group != "" {
		return e.Group.IsBroadcast()
	}
	return e.Receiver.IsBroadcast()
}

// AAD binds sealed data to the routing header.
func (e *Envelope) AAD() []byte {
	b := make([]byte, 0, len(e.Sender)+len(e.Receiver)+1)
	b = append(b, e.Sender...)
	b = append(b, '>')
	b = append(b, e.Receiver...)
	return b
}
