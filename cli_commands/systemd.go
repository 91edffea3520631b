package cli_commands

import (
	"errors"
	"fmt"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog/log"
)

var (
	NotifySocketNotFound = errors.New("Notify socket was not found!")
)

func handleNotifyError(state bool, err error, notification string) error {
	if !state && err != nil {
		log.Error().
			Str("error", err.Error()).
			Str("event", "SystemdNotify").
			Str("notification", notification).
			Msg(fmt.Sprintf("Systemd notify supported but failed: %v", err))
		return err
	}
	if !state && err == nil {
		log.Debug().
			Str("event", "SystemdNotify").
			Str("notification", notification).
			Msg("Systemd notify not supported")
		return NotifySocketNotFound
	}
	if state && err == nil {
		log.Info().
			Str("event", "SystemdNotify").
			Str("notification", notification).
			Msg("Systemd notify is supported and the message has been sent")
	}
	return err
}

func notify(notification string, state string) error {
	log.Info().
		Str("event", "SystemdNotify").
		Str("notification", notification).
		Msg(fmt.Sprintf("Sending %s notification", notification))
	sent, err := daemon.SdNotify(false, state)
	return handleNotifyError(sent, err, notification)
}

func notifyReady() error {
	return notify("ready", daemon.SdNotifyReady)
}

func notifyReloading() error {
	return notify("reloading", daemon.SdNotifyReloading)
}

func notifyStopping() error {
	return notify("stopping", daemon.SdNotifyStopping)
}

// notifyFailed reports whether err is a real notify failure, as opposed to
// running outside systemd.
func notifyFailed(err error) bool {
	return err != nil && !errors.Is(err, NotifySocketNotFound)
}
