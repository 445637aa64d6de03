package aggregator

// MovingAverage is a fixed-capacity ring buffer that keeps a running sum
// of its contents. When full, adding a value evicts the oldest one.
type MovingAverage struct {
	values []float64
	next   int
	count  int
	sum    float64
}

// NewMovingAverage creates a window holding at most capacity values
func NewMovingAverage(capacity int) *MovingAverage {
	if capacity < 1 {
		capacity = 1
	}
	return &MovingAverage{values: make([]float64, capacity)}
}

// Add appends a value, evicting the oldest one if the window is full
func (m *MovingAverage) Add(v float64) {
	if m.count == len(m.values) {
		m.sum -= m.values[m.next]
	} else {
		m.count++
	}
	m.values[m.next] = v
	m.sum += v
	m.next = (m.next + 1) % len(m.values)

	// Resync the running sum once per revolution to bound float drift.
	if m.next == 0 && m.count == len(m.values) {
		m.sum = 0
		for _, x := range m.values {
			m.sum += x
		}
	}
}

// Mean returns the unweighted mean of the window, or false if it is empty
func (m *MovingAverage) Mean() (float64, bool) {
	if m.count == 0 {
		return 0, false
	}
	return m.sum / float64(m.count), true
}

// Len returns the number of values currently held
func (m *MovingAverage) Len() int {
	return m.count
}

// Cap returns the window capacity
func (m *MovingAverage) Cap() int {
	return len(m.values)
}
