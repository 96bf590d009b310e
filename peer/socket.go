package peer

import "net"

// listenUDP binds an ephemeral local UDP socket, per §4.3's "owns one
// UDP socket bound to an ephemeral local port".
func listenUDP() (*net.UDPConn, error) {
	return net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
}
