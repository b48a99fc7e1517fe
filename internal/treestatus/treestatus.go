// Package treestatus answers whether it is currently safe to land
// changes, based on an external JSON status endpoint.
package treestatus

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bjulian5/cq/internal/ui"
)

// DefaultURL is the status endpoint for the public tree.
const DefaultURL = "https://chromiumos-status.appspot.com/current?format=json"

const (
	fetchAttempts    = 5
	initialBackoff   = 1 * time.Second
	maxSleepInterval = 30 * time.Second
)

// Status is the JSON shape of the endpoint's response.
type Status struct {
	GeneralState string `json:"general_state"`
	Message      string `json:"message"`
}

// open reports whether the state allows landing changes. A throttled
// tree still accepts commit-queue traffic.
func (s Status) open() bool {
	return s.GeneralState == "open" || s.GeneralState == "throttled"
}

// Gate polls the tree status endpoint with bounded retries.
type Gate struct {
	url    string
	client *http.Client

	// sleep and now are swapped out in tests.
	sleep func(time.Duration)
	now   func() time.Time
}

// NewGate creates a gate against the default status endpoint.
func NewGate() *Gate {
	return NewGateForURL(DefaultURL)
}

// NewGateForURL creates a gate against a specific status endpoint.
func NewGateForURL(url string) *Gate {
	return &Gate{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
		sleep:  time.Sleep,
		now:    time.Now,
	}
}

// IsOpen returns true if the tree is open or throttled. Transient fetch
// failures are retried with exponential backoff and, if the endpoint
// stays unreachable, the gate fails open so the queue cannot wedge on a
// monitoring outage. A reachable but closed tree is re-polled until it
// opens or maxTimeout elapses.
func (g *Gate) IsOpen(maxTimeout time.Duration) bool {
	if g.fetch().open() {
		return true
	}

	// Sleep interval is clamped to 1-30 seconds.
	sleepInterval := min(max(maxTimeout/5, time.Second), maxSleepInterval)

	start := g.now()
	for g.now().Sub(start) < maxTimeout {
		g.sleep(sleepInterval)
		if g.fetch().open() {
			return true
		}
	}
	return false
}

// fetch retrieves the current status, retrying transient failures. After
// the final attempt it reports the tree as open.
func (g *Gate) fetch() Status {
	backoff := initialBackoff
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		status, err := g.fetchOnce()
		if err == nil {
			return status
		}
		g.sleep(backoff)
		backoff *= 2
	}
	ui.Warningf("could not get a status from %s; assuming the tree is open", g.url)
	return Status{GeneralState: "open"}
}

func (g *Gate) fetchOnce() (Status, error) {
	resp, err := g.client.Get(g.url)
	if err != nil {
		return Status{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Status{}, fmt.Errorf("tree status endpoint returned %d", resp.StatusCode)
	}

	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return Status{}, err
	}
	return status, nil
}
