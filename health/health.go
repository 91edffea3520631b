package health

import (
	"sort"
	"sync"
	"time"
)

const (
	UnhealthyDuration   = time.Minute * 5
	CheckHealthDuration = time.Second * 15
)

type ClientState int

const (
	Healthy ClientState = iota
	Unhealthy
)

var clientStateNames = map[ClientState]string{
	Healthy:   "healthy",
	Unhealthy: "unhealthy",
}

func (clientState ClientState) String() string {
	return clientStateNames[clientState]
}

type ClientHealth struct {
	LastSeen       time.Time
	State          ClientState
	UnhealthyAfter time.Time
}

func NewClientHealth(now time.Time, unhealthyAfter time.Duration) ClientHealth {
	return ClientHealth{
		now,
		Healthy,
		now.Add(unhealthyAfter),
	}
}

func (clientHealth ClientHealth) Transitioned(now time.Time) (ClientHealth, bool) {
	switch clientHealth.State {
	case Healthy:
		if clientHealth.UnhealthyAfter.Before(now) {
			clientHealth.State = Unhealthy
			return clientHealth, true
		}
	case Unhealthy:
		if clientHealth.UnhealthyAfter.After(now) {
			clientHealth.State = Healthy
			return clientHealth, true
		}
	}
	return clientHealth, false
}

func (clientHealth ClientHealth) BumpLastSeen(now time.Time, unhealthyAfter time.Duration) ClientHealth {
	clientHealth.LastSeen = now
	clientHealth.UnhealthyAfter = now.Add(unhealthyAfter)
	return clientHealth
}

type Transition struct {
	ClientID string
	From     ClientHealth
	To       ClientHealth
}

// Tracker keeps the health of every client that has been seen.
type Tracker struct {
	mu             sync.Mutex
	clients        map[string]ClientHealth
	unhealthyAfter time.Duration
}

func NewTracker(unhealthyAfter time.Duration) *Tracker {
	if unhealthyAfter <= 0 {
		unhealthyAfter = UnhealthyDuration
	}
	return &Tracker{
		clients:        make(map[string]ClientHealth),
		unhealthyAfter: unhealthyAfter,
	}
}

// Seen records any message from clientID.
func (tracker *Tracker) Seen(clientID string, now time.Time) {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	if client, found := tracker.clients[clientID]; found {
		tracker.clients[clientID] = client.BumpLastSeen(now, tracker.unhealthyAfter)
	} else {
		tracker.clients[clientID] = NewClientHealth(now, tracker.unhealthyAfter)
	}
}

// Check applies due transitions and returns them ordered by client id.
func (tracker *Tracker) Check(now time.Time) []Transition {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()

	var transitions []Transition
	for key, clientHealth := range tracker.clients {
		newClientHealth, transitioned := clientHealth.Transitioned(now)
		if !transitioned {
			continue
		}
		tracker.clients[key] = newClientHealth
		transitions = append(transitions, Transition{ClientID: key, From: clientHealth, To: newClientHealth})
	}

	sort.Slice(transitions, func(i, j int) bool {
		return transitions[i].ClientID < transitions[j].ClientID
	})
	return transitions
}

func (tracker *Tracker) Get(clientID string) (ClientHealth, bool) {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	clientHealth, found := tracker.clients[clientID]
	return clientHealth, found
}
