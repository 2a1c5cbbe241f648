package commands

import (
	"net/http"
	"time"

	"github.com/maxolivera/go-torrent/internal/tracker"
)

// Config carries the settings the commands share.
type Config struct {
	// Port is announced to the tracker as our listening port.
	Port uint16
	// Timeout bounds each network operation.
	Timeout time.Duration
	// Client is used for tracker requests; nil means http.DefaultClient.
	Client *http.Client
}

func DefaultConfig() Config {
	return Config{
		Port:    tracker.DefaultPort,
		Timeout: 3 * time.Second,
	}
}
