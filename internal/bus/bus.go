// Package bus carries messages between execution contexts: the background
// daemon and any page clients attached to it over its control socket.
package bus

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const SockName = "control.sock"
const PidName = "watranscriber.pid"
const ProtoVer = "0.1"

// socketHost is the placeholder host used in URLs sent over the unix socket.
const socketHost = "watranscriber"

// ~/.cache/watranscriber/control.sock
func SockPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	hd := filepath.Join(dir, "watranscriber")
	return filepath.Join(hd, SockName), nil
}

// ~/.cache/watranscriber/watranscriber.pid
func PidPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	hd := filepath.Join(dir, "watranscriber")
	return filepath.Join(hd, PidName), nil
}

// Listen opens the control socket at path, or at SockPath when path is empty.
func Listen(path string) (net.Listener, error) {
	if path == "" {
		sp, err := SockPath()
		if err != nil {
			return nil, err
		}
		path = sp
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	_ = os.Remove(path) // stale socket from last run
	return net.Listen("unix", path)
}

func dialSocket(path string) func(ctx context.Context, _, _ string) (net.Conn, error) {
	return func(ctx context.Context, _, _ string) (net.Conn, error) {
		sp := path
		if sp == "" {
			var err error
			if sp, err = SockPath(); err != nil {
				return nil, err
			}
		}
		var d net.Dialer
		return d.DialContext(ctx, "unix", sp)
	}
}

// HTTPClient returns a client whose requests go to the daemon's control
// socket at path (SockPath when empty). Use BaseURL to build request URLs.
func HTTPClient(path string) *http.Client {
	return &http.Client{
		Transport: &http.Transport{DialContext: dialSocket(path)},
		Timeout:   5 * time.Minute,
	}
}

// BaseURL is the URL prefix for requests made with HTTPClient.
const BaseURL = "http://" + socketHost
