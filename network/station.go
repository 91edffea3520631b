package network

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"

	"metamakers.org/rfid-access-mqtt/config"
)

var (
	ErrNoCandidates    = errors.New("no network candidates configured")
	ErrJoinUnsupported = errors.New("station cannot join networks")
)

type Candidate = config.Candidate

// Station is the node's view of its network link. Association details belong
// to the host; a Station only asks and requests.
type Station interface {
	Associated(ctx context.Context) (bool, error)
	Join(ctx context.Context, candidate Candidate) error
}

// HostStation treats the link as managed by the host. It is associated while
// the interface (or any non-loopback interface, when none is named) is up and
// has an address.
type HostStation struct {
	Interface string
}

func (station HostStation) Associated(ctx context.Context) (bool, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return false, fmt.Errorf("listing interfaces: %w", err)
	}

	for _, iface := range interfaces {
		if station.Interface != "" && iface.Name != station.Interface {
			continue
		}
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if station.Interface == "" && iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		if len(addrs) > 0 {
			return true, nil
		}
	}

	return false, nil
}

func (station HostStation) Join(ctx context.Context, candidate Candidate) error {
	return fmt.Errorf("%w: %s is host managed", ErrJoinUnsupported, candidate.SSID)
}

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("%s %s: %w: %s", name, args[0], err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// NMCLIStation drives WiFi through NetworkManager's command line client.
type NMCLIStation struct {
	Interface string
	Run       Runner
}

func NewNMCLIStation(iface string) *NMCLIStation {
	return &NMCLIStation{Interface: iface, Run: execRunner}
}

// Associated reports whether the configured interface is connected. Without
// an interface any connected wifi device counts.
func (station *NMCLIStation) Associated(ctx context.Context) (bool, error) {
	out, err := station.Run(ctx, "nmcli", "-t", "-f", "DEVICE,TYPE,STATE", "device")
	if err != nil {
		return false, err
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.SplitN(scanner.Text(), ":", 3)
		if len(fields) != 3 {
			continue
		}
		device, kind, state := fields[0], fields[1], fields[2]

		if station.Interface != "" {
			if device == station.Interface {
				return state == "connected", nil
			}
			continue
		}
		if kind == "wifi" && state == "connected" {
			return true, nil
		}
	}

	return false, scanner.Err()
}

func (station *NMCLIStation) Join(ctx context.Context, candidate Candidate) error {
	args := []string{"device", "wifi", "connect", candidate.SSID}
	if candidate.Password != "" {
		args = append(args, "password", candidate.Password)
	}
	if station.Interface != "" {
		args = append(args, "ifname", station.Interface)
	}

	if _, err := station.Run(ctx, "nmcli", args...); err != nil {
		return fmt.Errorf("joining %s: %w", candidate.SSID, err)
	}
	return nil
}

// NewStation builds the station named by the network configuration.
func NewStation(cfg config.NetworkConfig) (Station, error) {
	switch cfg.Station {
	case config.StationHost:
		return HostStation{Interface: cfg.Interface}, nil
	case config.StationNMCLI:
		return NewNMCLIStation(cfg.Interface), nil
	default:
		return nil, fmt.Errorf("%w: network.station %q", config.ErrInvalidConfig, cfg.Station)
	}
}
