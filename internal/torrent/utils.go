package torrent

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maxolivera/go-torrent/internal/encoding/bencode"
)

var (
	ErrMissingField    = errors.New("missing or invalid field")
	ErrInvalidField    = errors.New("field out of range")
	ErrMalformedPieces = errors.New("pieces length is not a multiple of 20")
)

// Parse decodes a whole .torrent file and extracts its metadata.
func Parse(data []byte) (*MetaData, error) {
	root, err := bencode.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("error decoding torrent: %w", err)
	}
	return Extract(root)
}

// Extract reads the announce URL and the info dictionary out of a decoded
// torrent. root is only read.
func Extract(root bencode.Value) (*MetaData, error) {
	dict, ok := root.(bencode.Dict)
	if !ok {
		return nil, fmt.Errorf("%w: torrent must be a dictionary, got %s", ErrMissingField, bencode.KindOf(root))
	}

	announce, ok := dict["announce"].(bencode.String)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingField, "announce")
	}

	info, ok := dict["info"].(bencode.Dict)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingField, "info")
	}

	length, err := intField(info, "length")
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidField, length)
	}

	pieceLength, err := intField(info, "piece length")
	if err != nil {
		return nil, err
	}
	if pieceLength <= 0 {
		return nil, fmt.Errorf("%w: piece length %d", ErrInvalidField, pieceLength)
	}

	pieces, ok := info["pieces"].(bencode.String)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingField, "pieces")
	}
	pieceHashes, err := SplitPieces(pieces)
	if err != nil {
		return nil, err
	}

	infoHash, err := InfoHash(info)
	if err != nil {
		return nil, err
	}

	var name string
	if n, ok := info["name"].(bencode.String); ok {
		name = string(n)
	}

	slog.Debug("extracted torrent metadata",
		"announce", string(announce),
		"length", length,
		"pieceLength", pieceLength,
		"pieces", len(pieceHashes),
		"infoHash", fmt.Sprintf("%x", infoHash),
	)

	return &MetaData{
		Announce:    string(announce),
		Name:        name,
		Length:      length,
		PieceLength: pieceLength,
		InfoHash:    infoHash,
		PieceHashes: pieceHashes,
	}, nil
}

// InfoHash is the SHA-1 of the canonical encoding of info, never of a slice
// of the raw file, so the key order used by the file does not matter.
func InfoHash(info bencode.Dict) ([HashSize]byte, error) {
	infoEncoded, err := bencode.Encode(info)
	if err != nil {
		return [HashSize]byte{}, fmt.Errorf("error encoding info: %w", err)
	}
	return sha1.Sum(infoEncoded), nil
}

// SplitPieces cuts the pieces blob into consecutive 20-byte SHA-1 hashes.
func SplitPieces(pieces []byte) ([][HashSize]byte, error) {
	if len(pieces)%HashSize != 0 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrMalformedPieces, len(pieces))
	}

	hashes := make([][HashSize]byte, len(pieces)/HashSize)
	for i := range hashes {
		copy(hashes[i][:], pieces[i*HashSize:(i+1)*HashSize])
	}
	return hashes, nil
}

func intField(info bencode.Dict, key string) (int64, error) {
	v, ok := info[key].(bencode.Integer)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMissingField, key)
	}
	n, ok := v.Int64()
	if !ok {
		return 0, fmt.Errorf("%w: %q does not fit in 64 bits", ErrInvalidField, key)
	}
	return n, nil
}
