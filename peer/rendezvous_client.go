package peer

import (
	"encoding/json"
	"net"

	"github.com/pkg/errors"
)

// Wire shapes for talking to the rendezvous service (package
// rendezvous). These mirror rendezvous.Type* / the your_addr, peer and
// error message shapes; duplicated here deliberately — this is the wire
// contract between two independently evolvable processes, not shared
// code. The discriminator is "type", matching peer/message.go's own
// file-transfer protocol.
const (
	rendezvousTypeRegister = "register"
	rendezvousTypeConnect  = "connect"
)

type rendezvousOutbound struct {
	Type     string `json:"type"`
	TargetIP string `json:"target_ip,omitempty"`
}

type rendezvousInbound struct {
	Type     string     `json:"type"`
	YourAddr *[2]any    `json:"your_addr,omitempty"`
	Peer     *[2]any    `json:"peer,omitempty"`
	Error    string     `json:"error,omitempty"`
}

func decodeRendezvousMessage(b []byte) (rendezvousInbound, bool) {
	var m rendezvousInbound
	if err := json.Unmarshal(b, &m); err != nil || m.Type == "" {
		return rendezvousInbound{}, false
	}
	return m, true
}

func encodeRendezvousMessage(m rendezvousOutbound) []byte {
	b, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	return b
}

// parseAddrPair converts the wire (ip, port) pair into a *net.UDPAddr.
func parseAddrPair(pair *[2]any) (*net.UDPAddr, error) {
	if pair == nil {
		return nil, errors.New("missing address pair")
	}
	ip, ok := pair[0].(string)
	if !ok {
		return nil, errors.New("address pair: ip is not a string")
	}
	port, ok := pair[1].(float64)
	if !ok {
		return nil, errors.New("address pair: port is not a number")
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, errors.Errorf("address pair: invalid ip %q", ip)
	}
	return &net.UDPAddr{IP: parsed, Port: int(port)}, nil
}
