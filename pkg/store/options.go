package store

// WriteOption is a function type for configuring Write operations.
//
// Options are applied using the functional options pattern, allowing
// flexible configuration without requiring all parameters.
type WriteOption func(*WriteOptions)

// WriteOptions contains configuration options for Write operations.
type WriteOptions struct {
	// Metadata contains additional metadata stored with the entry. It
	// participates in the content hash.
	Metadata map[string]interface{}

	// TTLSeconds is the entry's time-to-live. Zero means no expiry.
	TTLSeconds int

	// Source records where the entry came from.
	Source Source

	// TrustScore (0.0-1.0) records how much to trust the entry.
	TrustScore float64

	// Importance (0.0-1.0) seeds the entry's ranking metrics.
	Importance float64
}

// defaultWriteOptions returns the defaults applied before options run:
// user source, full trust, middling importance.
func defaultWriteOptions() WriteOptions {
	return WriteOptions{
		Source:     SourceUser,
		TrustScore: 1.0,
		Importance: 0.5,
	}
}

// NewWriteOptions folds opts over the defaults.
func NewWriteOptions(opts ...WriteOption) WriteOptions {
	o := defaultWriteOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithMetadata sets the metadata for a Write operation.
//
// Example:
//
//	id, _ := st.Write(ctx, ns, key, value,
//	    store.WithMetadata(map[string]interface{}{"channel": "chat"}))
func WithMetadata(metadata map[string]interface{}) WriteOption {
	return func(opts *WriteOptions) {
		opts.Metadata = metadata
	}
}

// WithTTL sets the time-to-live in seconds for a Write operation.
//
// Example:
//
//	id, _ := st.Write(ctx, ns, key, value, store.WithTTL(3600))
func WithTTL(seconds int) WriteOption {
	return func(opts *WriteOptions) {
		opts.TTLSeconds = seconds
	}
}

// WithSource sets the provenance source for a Write operation.
//
// Example:
//
//	id, _ := st.Write(ctx, ns, key, value, store.WithSource(store.SourceTool))
func WithSource(source Source) WriteOption {
	return func(opts *WriteOptions) {
		opts.Source = source
	}
}

// WithTrustScore sets the trust score for a Write operation.
//
// Example:
//
//	id, _ := st.Write(ctx, ns, key, value, store.WithTrustScore(0.2))
func WithTrustScore(score float64) WriteOption {
	return func(opts *WriteOptions) {
		opts.TrustScore = score
	}
}

// WithImportance sets the ranking importance for a Write operation.
//
// Example:
//
//	id, _ := st.Write(ctx, ns, key, value, store.WithImportance(0.9))
func WithImportance(importance float64) WriteOption {
	return func(opts *WriteOptions) {
		opts.Importance = importance
	}
}
