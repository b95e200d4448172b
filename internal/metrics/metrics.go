package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mutex       sync.RWMutex
	successes   map[string]int64
	failures    map[string]int64
	rejections  map[string]int64
	opens       map[string]int64
	transitions map[string]int64
	lastState   map[string]string
	startTime   time.Time
}

type Snapshot struct {
	Uptime        time.Duration             `json:"uptime"`
	TotalRejected int64                     `json:"total_rejected"`
	Circuits      map[string]CircuitMetrics `json:"circuits"`
}

type CircuitMetrics struct {
	Successes   int64  `json:"successes"`
	Failures    int64  `json:"failures"`
	Rejections  int64  `json:"rejections"`
	TimesOpened int64  `json:"times_opened"`
	Transitions int64  `json:"transitions"`
	LastState   string `json:"last_state"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		successes:   make(map[string]int64),
		failures:    make(map[string]int64),
		rejections:  make(map[string]int64),
		opens:       make(map[string]int64),
		transitions: make(map[string]int64),
		lastState:   make(map[string]string),
		startTime:   time.Now(),
	}
}

func (m *Metrics) RecordSuccess(circuit string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.successes[circuit]++
}

func (m *Metrics) RecordFailure(circuit string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.failures[circuit]++
}

func (m *Metrics) RecordRejection(circuit string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.rejections[circuit]++
}

func (m *Metrics) RecordTransition(circuit, from, to string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.transitions[circuit]++
	m.lastState[circuit] = to
	if to == "OPEN" {
		m.opens[circuit]++
	}
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:   time.Since(m.startTime),
		Circuits: make(map[string]CircuitMetrics),
	}

	// Collect all circuit names seen on any counter
	allCircuits := make(map[string]bool)
	for circuit := range m.successes {
		allCircuits[circuit] = true
	}
	for circuit := range m.failures {
		allCircuits[circuit] = true
	}
	for circuit := range m.rejections {
		allCircuits[circuit] = true
	}
	for circuit := range m.lastState {
		allCircuits[circuit] = true
	}

	for circuit := range allCircuits {
		snap.TotalRejected += m.rejections[circuit]

		snap.Circuits[circuit] = CircuitMetrics{
			Successes:   m.successes[circuit],
			Failures:    m.failures[circuit],
			Rejections:  m.rejections[circuit],
			TimesOpened: m.opens[circuit],
			Transitions: m.transitions[circuit],
			LastState:   m.lastState[circuit],
		}
	}

	return snap
}
