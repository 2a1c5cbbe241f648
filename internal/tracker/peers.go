package tracker

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"

	"github.com/maxolivera/go-torrent/internal/encoding/bencode"
)

const (
	compactPeerSize  = 6
	compactPeer6Size = 18
)

var (
	ErrMalformedResponse = errors.New("malformed tracker response")
	ErrMalformedPeerList = errors.New("malformed peer list")
	ErrTrackerFailure    = errors.New("tracker failure")
)

// ParseResponse decodes an announce response. peers may be compact or a
// list of dictionaries; an optional compact peers6 entry is appended.
func ParseResponse(data []byte) (*Response, error) {
	root, err := bencode.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	dict, ok := root.(bencode.Dict)
	if !ok {
		return nil, fmt.Errorf("%w: expected a dictionary, got %s", ErrMalformedResponse, root.Kind())
	}

	if reason, ok := dict["failure reason"].(bencode.String); ok {
		return nil, fmt.Errorf("%w: %s", ErrTrackerFailure, reason)
	}

	var resp Response
	if interval, ok := dict["interval"].(bencode.Integer); ok {
		resp.Interval, _ = interval.Int64()
	}

	peersValue, ok := dict["peers"]
	if !ok {
		return nil, fmt.Errorf("%w: no peers entry", ErrMalformedPeerList)
	}
	resp.Peers, err = parsePeerList(peersValue)
	if err != nil {
		return nil, err
	}

	if peers6, ok := dict["peers6"]; ok {
		compact, ok := peers6.(bencode.String)
		if !ok {
			return nil, fmt.Errorf("%w: peers6 is a %s", ErrMalformedPeerList, peers6.Kind())
		}
		more, err := parseCompact6(compact)
		if err != nil {
			return nil, err
		}
		resp.Peers = append(resp.Peers, more...)
	}

	return &resp, nil
}

// ParsePeers turns a peers entry into a map from address to port.
func ParsePeers(v bencode.Value) (map[string]uint16, error) {
	peers, err := parsePeerList(v)
	if err != nil {
		return nil, err
	}
	return (&Response{Peers: peers}).PeerMap(), nil
}

func parsePeerList(v bencode.Value) ([]Peer, error) {
	switch v := v.(type) {
	case bencode.String:
		return parseCompact(v)
	case bencode.List:
		return parseDictPeers(v)
	case nil:
		return nil, fmt.Errorf("%w: no peers", ErrMalformedPeerList)
	default:
		return nil, fmt.Errorf("%w: peers is a %s", ErrMalformedPeerList, v.Kind())
	}
}

// parseCompact reads 6 byte records: 4 byte IPv4 address and 2 byte port,
// both big endian.
func parseCompact(compact []byte) ([]Peer, error) {
	if len(compact)%compactPeerSize != 0 {
		return nil, fmt.Errorf("%w: compact peers length %d is not a multiple of %d",
			ErrMalformedPeerList, len(compact), compactPeerSize)
	}

	peers := make([]Peer, 0, len(compact)/compactPeerSize)
	for i := 0; i < len(compact); i += compactPeerSize {
		record := compact[i : i+compactPeerSize]
		ip := netip.AddrFrom4([4]byte(record[:4]))
		port := binary.BigEndian.Uint16(record[4:6])
		peers = append(peers, Peer{IP: ip.String(), Port: port})
	}
	return peers, nil
}

// parseCompact6 reads 18 byte records: 16 byte IPv6 address and 2 byte port.
func parseCompact6(compact []byte) ([]Peer, error) {
	if len(compact)%compactPeer6Size != 0 {
		return nil, fmt.Errorf("%w: compact peers6 length %d is not a multiple of %d",
			ErrMalformedPeerList, len(compact), compactPeer6Size)
	}

	peers := make([]Peer, 0, len(compact)/compactPeer6Size)
	for i := 0; i < len(compact); i += compactPeer6Size {
		record := compact[i : i+compactPeer6Size]
		ip := netip.AddrFrom16([16]byte(record[:16]))
		port := binary.BigEndian.Uint16(record[16:18])
		peers = append(peers, Peer{IP: ip.String(), Port: port})
	}
	return peers, nil
}

func parseDictPeers(list bencode.List) ([]Peer, error) {
	peers := make([]Peer, 0, len(list))
	for i, item := range list {
		dict, ok := item.(bencode.Dict)
		if !ok {
			return nil, fmt.Errorf("%w: peer %d is a %s", ErrMalformedPeerList, i, item.Kind())
		}
		ip, ok := dict["ip"].(bencode.String)
		if !ok || len(ip) == 0 {
			return nil, fmt.Errorf("%w: peer %d has no ip", ErrMalformedPeerList, i)
		}
		portValue, ok := dict["port"].(bencode.Integer)
		if !ok {
			return nil, fmt.Errorf("%w: peer %d has no port", ErrMalformedPeerList, i)
		}
		port, ok := portValue.Int64()
		if !ok || port < 0 || port > 65535 {
			return nil, fmt.Errorf("%w: peer %d has port %s", ErrMalformedPeerList, i, portValue)
		}
		peers = append(peers, Peer{IP: string(ip), Port: uint16(port)})
	}
	return peers, nil
}
