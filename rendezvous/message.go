package rendezvous

import "encoding/json"

// Message types recognized by the rendezvous service. Anything else is
// replied to with an error message reading "unknown message type" (see
// Server.handleDatagram). The wire discriminator is "type",
// matching original_source/matchmaker-server/matchmaker.py's msg.get("type")
// and peer/message.go's own file-transfer protocol, rather than an
// invented "kind" field.
const (
	TypeRegister = "register"
	TypeConnect  = "connect"
	TypeYourAddr = "your_addr"
	TypePeer     = "peer"
	TypeError    = "error"
)

// inbound is the shape every incoming datagram is decoded into before
// dispatch. Only Type is guaranteed; the rest depend on it.
type inbound struct {
	Type     string `json:"type"`
	TargetIP string `json:"target_ip"`
}

// addrPair mirrors the (ip, port) tuple the wire protocol carries for
// your_addr and peer replies.
type addrPair [2]any

func newAddrPair(ip string, port int) addrPair {
	return addrPair{ip, port}
}

type yourAddrMessage struct {
	Type     string   `json:"type"`
	YourAddr addrPair `json:"your_addr"`
}

type peerMessage struct {
	Type string   `json:"type"`
	Peer addrPair `json:"peer"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Every message type above is trivially marshalable; a failure here
		// means a programming mistake, not a runtime condition.
		panic(err)
	}
	return b
}
