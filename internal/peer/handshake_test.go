package peer_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/maxolivera/go-torrent/internal/peer"
)

var (
	infoHash = [20]byte{0xd6, 0x9f, 0x91, 0xe6, 0xb2, 0xae, 0x4c, 0x54, 0x24, 0x68,
		0xd1, 0x07, 0x3a, 0x71, 0xd4, 0xea, 0x13, 0x87, 0x9a, 0x7f}
	localID  = peer.ID([]byte("00112233445566778899"))
	remoteID = peer.ID([]byte("-RM0001-abcdefghijkl"))
)

func TestHandshakeMarshal(t *testing.T) {
	msg := peer.Handshake{InfoHash: infoHash, PeerID: localID}.Marshal()

	if len(msg) != 68 {
		t.Fatalf("Expected 68 bytes but got %d", len(msg))
	}
	if msg[0] != 0x13 {
		t.Errorf("Expected protocol length 19 but got %d", msg[0])
	}
	if string(msg[1:20]) != "BitTorrent protocol" {
		t.Errorf("unexpected protocol %q", msg[1:20])
	}
	if !bytes.Equal(msg[20:28], make([]byte, 8)) {
		t.Errorf("reserved bytes are not zero: %x", msg[20:28])
	}
	if !bytes.Equal(msg[28:48], infoHash[:]) {
		t.Errorf("unexpected info hash %x", msg[28:48])
	}
	if !bytes.Equal(msg[48:68], localID[:]) {
		t.Errorf("unexpected peer id %x", msg[48:68])
	}
}

func TestUnmarshalHandshake(t *testing.T) {
	sent := peer.Handshake{Reserved: [8]byte{0, 0, 0, 0, 0, 0x10, 0, 0}, InfoHash: infoHash, PeerID: remoteID}
	got, err := peer.UnmarshalHandshake(sent.Marshal())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != sent {
		t.Errorf("Expected %+v but got %+v", sent, got)
	}

	if _, err := peer.UnmarshalHandshake(sent.Marshal()[:67]); !errors.Is(err, peer.ErrInvalidHandshake) {
		t.Errorf("expected ErrInvalidHandshake for a short message, got %v", err)
	}
	bad := sent.Marshal()
	copy(bad[1:], "BitTorrent protocoL")
	if _, err := peer.UnmarshalHandshake(bad); !errors.Is(err, peer.ErrInvalidHandshake) {
		t.Errorf("expected ErrInvalidHandshake for a wrong protocol, got %v", err)
	}
}

func TestFindPeerID(t *testing.T) {
	reply := peer.Handshake{InfoHash: infoHash, PeerID: remoteID}.Marshal()

	id, err := peer.FindPeerID(reply, infoHash)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != remoteID {
		t.Errorf("Expected %s but got %s", remoteID, id)
	}

	tests := []struct {
		name  string
		reply []byte
	}{
		{"empty", nil},
		{"shorter than 48 bytes", reply[:47]},
		{"info hash cut short", reply[:48+10]},
		{"other info hash", peer.Handshake{InfoHash: [20]byte{1}, PeerID: remoteID}.Marshal()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := peer.FindPeerID(tt.reply, infoHash); !errors.Is(err, peer.ErrHandshakeMismatch) {
				t.Errorf("expected ErrHandshakeMismatch, got %v", err)
			}
		})
	}
}

// fakePeer answers one handshake on conn with reply and closes it.
func fakePeer(t *testing.T, conn net.Conn, reply func(peer.Handshake) []byte) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer conn.Close()
		buf := make([]byte, peer.HandshakeSize)
		if _, err := io.ReadFull(conn, buf); err != nil {
			done <- err
			return
		}
		h, err := peer.UnmarshalHandshake(buf)
		if err != nil {
			done <- err
			return
		}
		_, err = conn.Write(reply(h))
		done <- err
	}()
	return done
}

func TestExchange(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	done := fakePeer(t, server, func(h peer.Handshake) []byte {
		if h.InfoHash != infoHash || h.PeerID != localID {
			t.Errorf("peer received unexpected handshake %+v", h)
		}
		return peer.Handshake{InfoHash: h.InfoHash, PeerID: remoteID}.Marshal()
	})

	attempt := peer.NewAttempt(infoHash, localID)
	if attempt.State() != peer.StateConnected {
		t.Errorf("Expected state connected but got %s", attempt.State())
	}

	id, err := attempt.Exchange(client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != remoteID {
		t.Errorf("Expected %s but got %s", remoteID, id)
	}
	if attempt.State() != peer.StateVerified {
		t.Errorf("Expected state verified but got %s", attempt.State())
	}
	if got, ok := attempt.RemoteID(); !ok || got != remoteID {
		t.Errorf("Expected remote id %s but got %s (%v)", remoteID, got, ok)
	}
	if err := <-done; err != nil {
		t.Errorf("fake peer: %v", err)
	}

	if _, err := attempt.Exchange(client); err == nil {
		t.Errorf("expected a second exchange on the same attempt to fail")
	}
}

func TestExchangeMismatch(t *testing.T) {
	tests := []struct {
		name  string
		reply func(peer.Handshake) []byte
	}{
		{"other info hash", func(peer.Handshake) []byte {
			return peer.Handshake{InfoHash: [20]byte{0xff}, PeerID: remoteID}.Marshal()
		}},
		{"short reply", func(h peer.Handshake) []byte {
			return h.Marshal()[:40]
		}},
		{"no reply", func(peer.Handshake) []byte {
			return nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := net.Pipe()
			defer client.Close()
			done := fakePeer(t, server, tt.reply)

			attempt := peer.NewAttempt(infoHash, localID)
			_, err := attempt.Exchange(client)
			if !errors.Is(err, peer.ErrHandshakeMismatch) {
				t.Errorf("expected ErrHandshakeMismatch, got %v", err)
			}
			if attempt.State() != peer.StateFailed {
				t.Errorf("Expected state failed but got %s", attempt.State())
			}
			if _, ok := attempt.RemoteID(); ok {
				t.Errorf("expected no remote id after a failed attempt")
			}
			<-done
		})
	}
}

func TestExchangeWriteFailure(t *testing.T) {
	client, server := net.Pipe()
	server.Close()
	defer client.Close()

	attempt := peer.NewAttempt(infoHash, localID)
	if _, err := attempt.Exchange(client); !errors.Is(err, peer.ErrConnection) {
		t.Errorf("expected ErrConnection, got %v", err)
	}
	if attempt.State() != peer.StateFailed {
		t.Errorf("Expected state failed but got %s", attempt.State())
	}
}

// trickleConn accepts at most 5 bytes per Write.
type trickleConn struct {
	written bytes.Buffer
	reply   io.Reader
}

func (c *trickleConn) Write(p []byte) (int, error) {
	if len(p) > 5 {
		p = p[:5]
	}
	return c.written.Write(p)
}

func (c *trickleConn) Read(p []byte) (int, error) {
	return c.reply.Read(p)
}

func TestExchangeRetriesPartialWrites(t *testing.T) {
	conn := &trickleConn{
		reply: bytes.NewReader(peer.Handshake{InfoHash: infoHash, PeerID: remoteID}.Marshal()),
	}
	id, err := peer.NewAttempt(infoHash, localID).Exchange(conn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != remoteID {
		t.Errorf("Expected %s but got %s", remoteID, id)
	}
	if !bytes.Equal(conn.written.Bytes(), peer.Handshake{InfoHash: infoHash, PeerID: localID}.Marshal()) {
		t.Errorf("handshake was not fully written: %x", conn.written.Bytes())
	}
}

func TestDial(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	closed := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			closed <- err
			return
		}
		defer conn.Close()
		buf := make([]byte, peer.HandshakeSize)
		if _, err := io.ReadFull(conn, buf); err != nil {
			closed <- err
			return
		}
		if _, err := conn.Write(peer.Handshake{InfoHash: infoHash, PeerID: remoteID}.Marshal()); err != nil {
			closed <- err
			return
		}
		// the client must hang up once the handshake is done
		_, err = conn.Read(buf)
		if errors.Is(err, io.EOF) {
			err = nil
		}
		closed <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id, err := peer.Dial(ctx, ln.Addr().String(), infoHash, localID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != remoteID {
		t.Errorf("Expected %s but got %s", remoteID, id)
	}
	if err := <-closed; err != nil {
		t.Errorf("connection was not closed cleanly: %v", err)
	}
}

func TestDialConnectionError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := peer.Dial(ctx, addr, infoHash, localID); !errors.Is(err, peer.ErrConnection) {
		t.Errorf("expected ErrConnection, got %v", err)
	}
}

func TestNewID(t *testing.T) {
	a, err := peer.NewID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := peer.NewID()
	if a == b {
		t.Errorf("expected two random ids to differ, both are %s", a)
	}
	if len(a.String()) != 40 {
		t.Errorf("Expected 40 hex characters but got %q", a.String())
	}
}

func TestStateString(t *testing.T) {
	states := map[peer.State]string{
		peer.StateConnected:     "connected",
		peer.StateHandshakeSent: "handshake sent",
		peer.StateVerified:      "verified",
		peer.StateFailed:        "failed",
		peer.State(42):          "unknown",
	}
	for state, name := range states {
		if state.String() != name {
			t.Errorf("Expected %q but got %q", name, state.String())
		}
	}
}
