package network

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metamakers.org/rfid-access-mqtt/config"
)

type fakeStation struct {
	mu         sync.Mutex
	associated bool
	reachable  map[string]bool
	joins      []string
}

func (station *fakeStation) Associated(ctx context.Context) (bool, error) {
	station.mu.Lock()
	defer station.mu.Unlock()
	return station.associated, nil
}

func (station *fakeStation) Join(ctx context.Context, candidate Candidate) error {
	station.mu.Lock()
	defer station.mu.Unlock()
	station.joins = append(station.joins, candidate.SSID)
	if !station.reachable[candidate.SSID] {
		return errors.New("no beacon")
	}
	station.associated = true
	return nil
}

func (station *fakeStation) setAssociated(associated bool) {
	station.mu.Lock()
	defer station.mu.Unlock()
	station.associated = associated
}

func TestAssociatorTriesCandidatesInOrder(t *testing.T) {
	station := &fakeStation{reachable: map[string]bool{"second": true, "third": true}}
	associator := &Associator{
		Station: station,
		Candidates: []Candidate{
			{SSID: "first"}, {SSID: "second"}, {SSID: "third"},
		},
		Log: zerolog.Nop(),
	}

	association, err := associator.Connect(context.Background())
	require.NoError(t, err)
	defer association.Close()

	assert.Equal(t, []string{"first", "second"}, station.joins)
}

func TestAssociatorSkipsJoinWhenAssociated(t *testing.T) {
	station := &fakeStation{associated: true}
	associator := &Associator{
		Station:    station,
		Candidates: []Candidate{{SSID: "first"}},
		Log:        zerolog.Nop(),
	}

	association, err := associator.Connect(context.Background())
	require.NoError(t, err)
	defer association.Close()

	assert.Empty(t, station.joins)
}

func TestAssociatorFailsWhenNothingJoins(t *testing.T) {
	station := &fakeStation{}
	associator := &Associator{
		Station:    station,
		Candidates: []Candidate{{SSID: "first"}, {SSID: "second"}},
		Log:        zerolog.Nop(),
	}

	_, err := associator.Connect(context.Background())
	assert.Error(t, err)
	assert.Equal(t, []string{"first", "second"}, station.joins)

	associator.Candidates = nil
	_, err = associator.Connect(context.Background())
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestAssociationDoneWhenLinkLost(t *testing.T) {
	station := &fakeStation{associated: true}
	associator := &Associator{
		Station:       station,
		CheckInterval: 5 * time.Millisecond,
		Log:           zerolog.Nop(),
	}

	association, err := associator.Connect(context.Background())
	require.NoError(t, err)
	defer association.Close()

	select {
	case <-association.Done():
		t.Fatal("association ended while still associated")
	case <-time.After(20 * time.Millisecond):
	}

	station.setAssociated(false)
	select {
	case <-association.Done():
	case <-time.After(time.Second):
		t.Fatal("association did not notice the lost link")
	}
}

func TestAssociationCloseIsIdempotent(t *testing.T) {
	associator := &Associator{Station: &fakeStation{associated: true}, Log: zerolog.Nop()}
	association, err := associator.Connect(context.Background())
	require.NoError(t, err)

	require.NoError(t, association.Close())
	require.NoError(t, association.Close())
	<-association.Done()
}

func TestNMCLIStation(t *testing.T) {
	var calls [][]string
	station := &NMCLIStation{
		Interface: "wlan0",
		Run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			calls = append(calls, append([]string{name}, args...))
			return []byte("eth0:ethernet:unavailable\nwlan0:wifi:connected\nlo:loopback:unmanaged\n"), nil
		},
	}

	associated, err := station.Associated(context.Background())
	require.NoError(t, err)
	assert.True(t, associated)

	require.NoError(t, station.Join(context.Background(), Candidate{SSID: "lab", Password: "secret"}))
	require.NoError(t, station.Join(context.Background(), Candidate{SSID: "open"}))

	assert.Equal(t, [][]string{
		{"nmcli", "-t", "-f", "DEVICE,TYPE,STATE", "device"},
		{"nmcli", "device", "wifi", "connect", "lab", "password", "secret", "ifname", "wlan0"},
		{"nmcli", "device", "wifi", "connect", "open", "ifname", "wlan0"},
	}, calls)
}

func TestNMCLIStationDisconnected(t *testing.T) {
	station := &NMCLIStation{
		Interface: "wlan0",
		Run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("wlan0:wifi:disconnected\n"), nil
		},
	}

	associated, err := station.Associated(context.Background())
	require.NoError(t, err)
	assert.False(t, associated)
}

func TestNMCLIStationAnyWifiDevice(t *testing.T) {
	tests := []struct {
		name       string
		out        string
		associated bool
	}{
		{"connected wifi", "eth0:ethernet:connected\nwlan0:wifi:connected\nlo:loopback:unmanaged\n", true},
		{"only ethernet connected", "eth0:ethernet:connected\nwlan0:wifi:disconnected\n", false},
		{"no devices", "", false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := config.Default().Network
			cfg.Station = config.StationNMCLI
			cfg.Interface = ""
			station, err := NewStation(cfg)
			require.NoError(t, err)

			nmcli := station.(*NMCLIStation)
			nmcli.Run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
				return []byte(test.out), nil
			}

			associated, err := station.Associated(context.Background())
			require.NoError(t, err)
			assert.Equal(t, test.associated, associated)
		})
	}
}

func TestHostStationCannotJoin(t *testing.T) {
	err := HostStation{}.Join(context.Background(), Candidate{SSID: "lab"})
	assert.ErrorIs(t, err, ErrJoinUnsupported)
}

func TestNewStation(t *testing.T) {
	cfg := config.Default().Network

	station, err := NewStation(cfg)
	require.NoError(t, err)
	assert.IsType(t, HostStation{}, station)

	cfg.Station = config.StationNMCLI
	station, err = NewStation(cfg)
	require.NoError(t, err)
	assert.IsType(t, &NMCLIStation{}, station)

	cfg.Station = "wpa"
	_, err = NewStation(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
