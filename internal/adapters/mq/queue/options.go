package queue

// Option applies a configuration option to the ShardedQueue.
type Option func(*ShardedQueue)

// WithCapacity sets the total capacity across all shards.
func WithCapacity(capacity int) Option {
	return func(q *ShardedQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithShards sets the number of shards. Each shard must have exactly one
// consumer for per-horse ordering to hold.
func WithShards(shards int) Option {
	return func(q *ShardedQueue) {
		if shards > 0 {
			q.shards = shards
		}
	}
}
