package buffer

// CircularFloat64 is a fixed-size circular buffer of float64 values
// used to track a running window of per-sweep statistics (acceptance
// fractions, log-likelihoods) without unbounded growth.
type CircularFloat64 struct {
	buffer    []float64 // actual storage
	pos       int       // Current position in buffer
	BufSize   int       // BufSize is the fixed number of values maintained in memory
	Count     int       // Count is the number of values in memory. Will always be <= BufSize
	TotalSeen int64     // TotalSeen is the total number of times Add has been called
}

// NewCircularFloat64 creates a new circular buffer of totalSize.
func NewCircularFloat64(totalSize int) *CircularFloat64 {
	if totalSize < 1 {
		totalSize = 1
	}

	return &CircularFloat64{
		buffer:  make([]float64, totalSize),
		pos:     0,
		BufSize: totalSize,
		Count:   0,
	}
}

// Internal: return the next array position
func (c *CircularFloat64) nextPos() int {
	return (c.pos + 1) % c.BufSize
}

// Add appends the given value to the buffer, overwriting the oldest entry
func (c *CircularFloat64) Add(v float64) {
	c.TotalSeen++

	c.buffer[c.pos] = v

	c.pos = c.nextPos()

	c.Count++
	if c.Count > c.BufSize {
		c.Count = c.BufSize // max out
	}
}

// Full returns true once Add has been called at least BufSize times.
func (c *CircularFloat64) Full() bool {
	return c.Count >= c.BufSize
}

// Mean returns the mean of the values currently held. Returns 0 before
// the first Add.
func (c *CircularFloat64) Mean() float64 {
	if c.Count < 1 {
		return 0.0
	}

	tot := 0.0
	for i := 0; i < c.Count; i++ {
		tot += c.buffer[i]
	}
	return tot / float64(c.Count)
}
