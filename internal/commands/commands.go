package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/maxolivera/go-torrent/internal/encoding/bencode"
	"github.com/maxolivera/go-torrent/internal/peer"
	"github.com/maxolivera/go-torrent/internal/torrent"
	"github.com/maxolivera/go-torrent/internal/tracker"
)

// Decode prints bencodedValue as JSON. Back to back values are printed as
// one JSON array.
func Decode(w io.Writer, bencodedValue []byte) error {
	slog.Info("calling Decode command")
	values, err := bencode.DecodeAll(bencodedValue)
	if err != nil {
		return err
	}

	var decoded any = values
	if len(values) == 1 {
		decoded = values[0]
	}

	jsonOutput, err := json.Marshal(decoded)
	if err != nil {
		return fmt.Errorf("error converting to json: %w", err)
	}
	fmt.Fprintln(w, string(jsonOutput))
	return nil
}

func Info(w io.Writer, file string) error {
	slog.Info("calling Info command")
	meta, err := readTorrent(file)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Tracker URL: %s\n", meta.Announce)
	fmt.Fprintf(w, "Length: %d\n", meta.Length)
	fmt.Fprintf(w, "Info Hash: %s\n", meta.InfoHashHex())
	fmt.Fprintf(w, "Piece Length: %d\n", meta.PieceLength)
	fmt.Fprintln(w, "Piece Hashes:")
	for _, pieceHash := range meta.PieceHashesHex() {
		fmt.Fprintln(w, pieceHash)
	}
	return nil
}

func Peers(ctx context.Context, w io.Writer, cfg Config, file string) error {
	slog.Info("calling Peers command")
	meta, err := readTorrent(file)
	if err != nil {
		return err
	}

	id, err := peer.NewID()
	if err != nil {
		return err
	}
	req := tracker.NewRequest(meta, id)
	req.Port = cfg.Port

	ctx, cancel := withTimeout(ctx, cfg.Timeout)
	defer cancel()

	resp, err := tracker.Announce(ctx, cfg.Client, meta.Announce, req)
	if err != nil {
		return err
	}

	for _, p := range resp.Peers {
		fmt.Fprintln(w, p.String())
	}
	return nil
}

func Handshake(ctx context.Context, w io.Writer, cfg Config, file, connection string) error {
	slog.Info("doing a Handshake!", "connection", connection)
	meta, err := readTorrent(file)
	if err != nil {
		return err
	}

	id, err := peer.NewID()
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, cfg.Timeout)
	defer cancel()

	remote, err := peer.Dial(ctx, connection, meta.InfoHash, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Peer ID: %s\n", remote)
	return nil
}

func readTorrent(file string) (*torrent.MetaData, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("error during file %q reading: %w", file, err)
	}
	slog.Debug("parsing torrent", "file", file, "size", len(data))

	meta, err := torrent.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("error parsing torrent %q: %w", file, err)
	}
	return meta, nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
