package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

const eventVaultUpdated = "vault_updated"

type event struct {
	Type     string `json:"type"`
	VaultID  string `json:"vault_id"`
	Version  int64  `json:"version"`
	DeviceID string `json:"device_id"`
}

var errRejected = errors.New("notification endpoint rejected the token")

func (d *Daemon) eventsURL(vaultID string) string {
	base := d.opts.NotifyAddr
	switch {
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case !strings.Contains(base, "://"):
		base = "ws://" + base
	}
	return strings.TrimSuffix(base, "/") + "/v1/vaults/" + url.PathEscape(vaultID) + "/events"
}

// listen keeps a notification connection for vaultID open until ctx is
// done.
func (d *Daemon) listen(ctx context.Context, vaultID string) error {
	backoff := d.opts.ReconnectMin
	reauthed := false
	for {
		connected, err := d.listenOnce(ctx, vaultID)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = d.opts.ReconnectMin
			reauthed = false
		}

		if errors.Is(err, errRejected) && d.opts.Reauth != nil && !reauthed {
			reauthed = true
			_, rerr := d.opts.Reauth(ctx, vaultID)
			if rerr == nil {
				continue
			}
			d.logger.Warn(ctx, "re-authentication failed", "vault_id", vaultID, "error", rerr)
		}

		d.logger.Warn(ctx, "notifications interrupted", "vault_id", vaultID, "error", err, "retry_in", backoff)
		if !sleep(ctx, backoff) {
			return nil
		}
		backoff = min(backoff*2, d.opts.ReconnectMax)
	}
}

func (d *Daemon) listenOnce(ctx context.Context, vaultID string) (bool, error) {
	token, err := d.tokens.Token(ctx, vaultID)
	if err != nil {
		return false, err
	}

	hdr := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, resp, err := d.dialer.DialContext(ctx, d.eventsURL(vaultID), hdr)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return false, fmt.Errorf("%w: %s", errRejected, resp.Status)
		}
		return false, err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	d.logger.Debug(ctx, "notifications connected", "vault_id", vaultID)
	// events may have been missed while disconnected
	d.fire(trigger{vaultID: vaultID, reason: "reconnect"})

	for {
		var ev event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return true, fmt.Errorf("closed by server: %w", err)
			}
			return true, err
		}
		if ev.Type != eventVaultUpdated || ev.VaultID != vaultID {
			continue
		}
		d.logger.Debug(ctx, "vault updated remotely", "vault_id", vaultID, "version", ev.Version, "device_id", ev.DeviceID)
		d.fire(trigger{vaultID: vaultID, reason: "notification"})
	}
}
