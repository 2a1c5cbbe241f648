package torrent

import (
	"encoding/hex"
)

const HashSize = 20

// MetaData is what a .torrent file describes, derived from its decoded root
// dictionary.
type MetaData struct {
	Announce    string
	Name        string
	Length      int64
	PieceLength int64
	InfoHash    [HashSize]byte
	PieceHashes [][HashSize]byte
}

func (m *MetaData) InfoHashHex() string {
	return hex.EncodeToString(m.InfoHash[:])
}

func (m *MetaData) PieceHashesHex() []string {
	hashes := make([]string, len(m.PieceHashes))
	for i, h := range m.PieceHashes {
		hashes[i] = hex.EncodeToString(h[:])
	}
	return hashes
}

func (m *MetaData) PieceCount() int {
	return len(m.PieceHashes)
}

// PieceSize is the length of piece index. Every piece is PieceLength bytes
// except the last, which holds whatever remains of Length.
func (m *MetaData) PieceSize(index int) int64 {
	if index < 0 || index >= len(m.PieceHashes) {
		return 0
	}
	if index < len(m.PieceHashes)-1 {
		return m.PieceLength
	}
	last := m.Length - int64(index)*m.PieceLength
	if last <= 0 || last > m.PieceLength {
		return m.PieceLength
	}
	return last
}
