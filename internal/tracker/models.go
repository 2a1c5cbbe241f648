package tracker

import (
	"net"
	"strconv"

	"github.com/maxolivera/go-torrent/internal/peer"
)

const DefaultPort = 6881

// Request holds the announce parameters sent to a tracker.
type Request struct {
	InfoHash   [20]byte
	PeerID     peer.ID
	Port       uint16
	Uploaded   int64
	Downloaded int64
	Left       int64
	Compact    bool
}

// Response is a decoded announce response.
type Response struct {
	Interval int64
	Peers    []Peer
}

type Peer struct {
	IP   string
	Port uint16
}

func (p Peer) String() string {
	return net.JoinHostPort(p.IP, strconv.Itoa(int(p.Port)))
}

// PeerMap maps each peer address to its port. When an address is listed more
// than once, the last port wins.
func (r *Response) PeerMap() map[string]uint16 {
	peers := make(map[string]uint16, len(r.Peers))
	for _, p := range r.Peers {
		peers[p.IP] = p.Port
	}
	return peers
}
