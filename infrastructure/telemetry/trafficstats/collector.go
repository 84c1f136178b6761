package trafficstats

import (
	"context"
	"sync/atomic"
	"time"
)

// Snapshot is a point-in-time view of bridge traffic. Client-to-engine
// counts bytes received from remote clients; engine-to-client counts bytes
// of engine output written back (post-throttling).
type Snapshot struct {
	ClientToEngineTotal uint64
	EngineToClientTotal uint64
	ClientToEngineRate  uint64 // bytes/sec
	EngineToClientRate  uint64 // bytes/sec
	Bridges             int64
}

// Collector aggregates traffic across all bridges of one host process.
// Counter updates are atomic; rate sampling runs on a single goroutine.
type Collector struct {
	clientToEngine atomic.Uint64
	engineToClient atomic.Uint64
	c2eRate        atomic.Uint64
	e2cRate        atomic.Uint64
	bridges        atomic.Int64

	sampleInterval time.Duration
	emaAlpha       float64

	// accessed only from the sampler goroutine in Start()
	lastC2E uint64
	lastE2C uint64
	c2eEMA  float64
	e2cEMA  float64
	started atomic.Bool
}

func NewCollector(sampleInterval time.Duration, emaAlpha float64) *Collector {
	if sampleInterval <= 0 {
		sampleInterval = time.Second
	}
	if emaAlpha < 0 {
		emaAlpha = 0
	}
	if emaAlpha > 1 {
		emaAlpha = 1
	}
	return &Collector{
		sampleInterval: sampleInterval,
		emaAlpha:       emaAlpha,
	}
}

// Start runs the rate sampler until the context is cancelled. A second call
// is a no-op.
func (c *Collector) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}

	ticker := time.NewTicker(c.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.updateRates(c.sampleInterval)
		}
	}
}

func (c *Collector) AddClientToEngine(bytes int) {
	if bytes > 0 {
		c.clientToEngine.Add(uint64(bytes))
	}
}

func (c *Collector) AddEngineToClient(bytes int) {
	if bytes > 0 {
		c.engineToClient.Add(uint64(bytes))
	}
}

// BridgeStarted and BridgeEnded track the live bridge count for the watchdog
// log line.
func (c *Collector) BridgeStarted() { c.bridges.Add(1) }
func (c *Collector) BridgeEnded()   { c.bridges.Add(-1) }

func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		ClientToEngineTotal: c.clientToEngine.Load(),
		EngineToClientTotal: c.engineToClient.Load(),
		ClientToEngineRate:  c.c2eRate.Load(),
		EngineToClientRate:  c.e2cRate.Load(),
		Bridges:             c.bridges.Load(),
	}
}

func (c *Collector) updateRates(interval time.Duration) {
	seconds := interval.Seconds()
	if seconds <= 0 {
		return
	}

	c2eNow := c.clientToEngine.Load()
	e2cNow := c.engineToClient.Load()

	c2eDelta := float64(c2eNow-c.lastC2E) / seconds
	e2cDelta := float64(e2cNow-c.lastE2C) / seconds
	c.lastC2E = c2eNow
	c.lastE2C = e2cNow

	if c.emaAlpha == 0 {
		c.c2eEMA = c2eDelta
		c.e2cEMA = e2cDelta
	} else {
		c.c2eEMA = c.emaAlpha*c2eDelta + (1-c.emaAlpha)*c.c2eEMA
		c.e2cEMA = c.emaAlpha*e2cDelta + (1-c.emaAlpha)*c.e2cEMA
	}

	c.c2eRate.Store(uint64(c.c2eEMA))
	c.e2cRate.Store(uint64(c.e2cEMA))
}
