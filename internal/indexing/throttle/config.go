package throttle

// Config holds the bounds of the adaptive batch size.
type Config struct {
	InitialBatchSize int // Blocks requested by the first batch (default: 1000)
	MinBatchSize     int // Floor after failures (default: 10)
	MaxBatchSize     int // Ceiling after successes (default: 10000)
}

// DefaultConfig returns the defaults used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		InitialBatchSize: 1000,
		MinBatchSize:     10,
		MaxBatchSize:     10000,
	}
}

// normalize fills zero fields from the defaults and orders the bounds.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.MinBatchSize < 1 {
		c.MinBatchSize = def.MinBatchSize
	}
	if c.MaxBatchSize < 1 {
		c.MaxBatchSize = def.MaxBatchSize
	}
	if c.MaxBatchSize < c.MinBatchSize {
		c.MaxBatchSize = c.MinBatchSize
	}
	if c.InitialBatchSize < 1 {
		c.InitialBatchSize = def.InitialBatchSize
	}
	return c
}
