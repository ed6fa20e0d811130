package dedupe

// Option applies a configuration option to the in-memory Deduper.
type Option func(*ringDeduper)

// WithMaxSize sets how many keys are remembered. When full, the oldest key
// is forgotten first. maxSize <= 0 remembers every key.
func WithMaxSize(maxSize int) Option {
	return func(d *ringDeduper) {
		d.maxSize = maxSize
	}
}
