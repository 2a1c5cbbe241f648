package peer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
)

const (
	ProtocolID    = "BitTorrent protocol"
	ReservedSize  = 8
	HandshakeSize = 1 + len(ProtocolID) + ReservedSize + 20 + 20

	// MaxReplySize bounds how much of the peer's reply is read.
	MaxReplySize = 1024
)

var (
	ErrConnection        = errors.New("peer connection failed")
	ErrHandshakeMismatch = errors.New("handshake mismatch")
	ErrInvalidHandshake  = errors.New("invalid handshake")
)

// Handshake is the first message on a peer connection:
// <19><"BitTorrent protocol"><reserved 8><info hash 20><peer id 20>.
type Handshake struct {
	Reserved [ReservedSize]byte
	InfoHash [20]byte
	PeerID   ID
}

// Marshal returns the 68 byte wire form.
func (h Handshake) Marshal() []byte {
	msg := make([]byte, HandshakeSize)

	// a. protocol length (1 byte)
	msg[0] = byte(len(ProtocolID))
	index := 1

	// b. protocol string (19 bytes)
	index += copy(msg[index:], ProtocolID)

	// c. reserved bytes (8 bytes)
	index += copy(msg[index:], h.Reserved[:])

	// d. info hash (20 bytes)
	index += copy(msg[index:], h.InfoHash[:])

	// e. peer id (20 bytes)
	copy(msg[index:], h.PeerID[:])

	slog.Debug("handshake created",
		slog.Group(
			"fields",
			"protocolLength", int(msg[0]),
			"string", ProtocolID,
			"reservedBytes", fmt.Sprintf("%x", h.Reserved),
			"infohash", fmt.Sprintf("%x", h.InfoHash),
			"peerID", h.PeerID.String(),
		),
	)
	return msg
}

// UnmarshalHandshake parses an exact 68 byte handshake.
func UnmarshalHandshake(b []byte) (Handshake, error) {
	if len(b) != HandshakeSize {
		return Handshake{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidHandshake, HandshakeSize, len(b))
	}
	if int(b[0]) != len(ProtocolID) || string(b[1:20]) != ProtocolID {
		return Handshake{}, fmt.Errorf("%w: unknown protocol %q", ErrInvalidHandshake, b[1:20])
	}

	var h Handshake
	copy(h.Reserved[:], b[20:28])
	copy(h.InfoHash[:], b[28:48])
	copy(h.PeerID[:], b[48:68])
	return h, nil
}

// FindPeerID locates infoHash in a handshake reply and returns the 20 bytes
// following it.
func FindPeerID(reply []byte, infoHash [20]byte) (ID, error) {
	if len(reply) < 48 {
		return ID{}, fmt.Errorf("%w: reply of %d bytes is too short", ErrHandshakeMismatch, len(reply))
	}

	index := bytes.Index(reply, infoHash[:])
	if index < 0 {
		return ID{}, fmt.Errorf("%w: info hash %x not found in reply", ErrHandshakeMismatch, infoHash)
	}
	start := index + len(infoHash)
	if start+len(ID{}) > len(reply) {
		return ID{}, fmt.Errorf("%w: reply ends before the peer id", ErrHandshakeMismatch)
	}

	var id ID
	copy(id[:], reply[start:])
	return id, nil
}

// Attempt is a single handshake over a connection it does not own.
type Attempt struct {
	InfoHash [20]byte
	LocalID  ID

	state  State
	remote ID
}

func NewAttempt(infoHash [20]byte, localID ID) *Attempt {
	return &Attempt{InfoHash: infoHash, LocalID: localID, state: StateConnected}
}

func (a *Attempt) State() State {
	return a.state
}

// RemoteID is the peer's id, available once the attempt is verified.
func (a *Attempt) RemoteID() (ID, bool) {
	return a.remote, a.state == StateVerified
}

// Exchange sends our handshake, reads the reply and extracts the remote peer
// id. Any failure leaves the attempt in StateFailed; it is not retried.
func (a *Attempt) Exchange(rw io.ReadWriter) (ID, error) {
	if a.state != StateConnected {
		return ID{}, fmt.Errorf("handshake already %s", a.state)
	}

	msg := Handshake{InfoHash: a.InfoHash, PeerID: a.LocalID}.Marshal()
	if err := writeFull(rw, msg); err != nil {
		a.state = StateFailed
		return ID{}, fmt.Errorf("%w: sending handshake: %w", ErrConnection, err)
	}
	a.state = StateHandshakeSent
	slog.Debug("handshake sent", "length", len(msg))

	reply, err := readReply(rw)
	if err != nil {
		a.state = StateFailed
		return ID{}, fmt.Errorf("%w: receiving handshake: %w", ErrConnection, err)
	}
	slog.Debug("handshake reply received", "length", len(reply))

	id, err := FindPeerID(reply, a.InfoHash)
	if err != nil {
		a.state = StateFailed
		return ID{}, err
	}

	a.state = StateVerified
	a.remote = id
	return id, nil
}

// Dial connects to addr, runs one handshake and closes the connection on
// every path. The context bounds both the dial and the exchange.
func Dial(ctx context.Context, addr string, infoHash [20]byte, localID ID) (ID, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return ID{}, fmt.Errorf("%w: %w", ErrConnection, err)
		}
	}

	slog.Info("connected to peer", "peer", addr)
	attempt := NewAttempt(infoHash, localID)
	id, err := attempt.Exchange(conn)
	slog.Info("handshake finished", "peer", addr, "state", attempt.State().String())
	return id, err
}

// writeFull keeps writing until msg is sent or the writer fails.
func writeFull(w io.Writer, msg []byte) error {
	for len(msg) > 0 {
		n, err := w.Write(msg)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		msg = msg[n:]
	}
	return nil
}

// readReply reads until a full handshake has arrived, the peer closes the
// connection or MaxReplySize bytes are buffered. A short reply is returned
// as is and rejected by FindPeerID.
func readReply(r io.Reader) ([]byte, error) {
	buf := make([]byte, MaxReplySize)
	n, err := io.ReadAtLeast(r, buf, HandshakeSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return buf[:n], nil
}
