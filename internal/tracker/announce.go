package tracker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/maxolivera/go-torrent/internal/peer"
	"github.com/maxolivera/go-torrent/internal/torrent"
)

// NewRequest builds the announce parameters of a fresh session: nothing
// uploaded or downloaded yet and the whole torrent left.
func NewRequest(meta *torrent.MetaData, id peer.ID) Request {
	return Request{
		InfoHash: meta.InfoHash,
		PeerID:   id,
		Port:     DefaultPort,
		Left:     meta.Length,
		Compact:  true,
	}
}

// Query returns the announce query parameters. info_hash and peer_id carry
// the raw 20 bytes; url.Values escapes them when encoded.
func (r Request) Query() url.Values {
	q := url.Values{}
	q.Set("info_hash", string(r.InfoHash[:]))
	q.Set("peer_id", string(r.PeerID[:]))
	q.Set("port", strconv.Itoa(int(r.Port)))
	q.Set("uploaded", strconv.FormatInt(r.Uploaded, 10))
	q.Set("downloaded", strconv.FormatInt(r.Downloaded, 10))
	q.Set("left", strconv.FormatInt(r.Left, 10))
	if r.Compact {
		q.Set("compact", "1")
	}
	return q
}

// URL appends the query to announce, keeping any parameters already on it.
func (r Request) URL(announce string) (string, error) {
	u, err := url.Parse(announce)
	if err != nil {
		return "", fmt.Errorf("invalid announce url %q: %w", announce, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported announce scheme %q", u.Scheme)
	}

	q := u.Query()
	for k, v := range r.Query() {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Announce sends req to the tracker at announce and parses its reply. A nil
// client means http.DefaultClient.
func Announce(ctx context.Context, client *http.Client, announce string, req Request) (*Response, error) {
	if client == nil {
		client = http.DefaultClient
	}

	reqURL, err := req.URL(announce)
	if err != nil {
		return nil, err
	}
	slog.Info("making url request", "url", reqURL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error building GET request: %w", err)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making GET request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tracker responded with non OK status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	slog.Debug("tracker response", "length", len(body))

	return ParseResponse(body)
}
