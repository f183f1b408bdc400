package constants

import "time"

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios
	EventBusMaxBuffer = 5000
)

// Worker Pool
const (
	// DefaultWorkerPoolSize - fixed size of the upload worker pool
	DefaultWorkerPoolSize = 10

	// DefaultQueueMultiplier - job queue capacity = workers * multiplier
	DefaultQueueMultiplier = 2

	// MaxQueueSize - absolute maximum queue size to prevent unbounded growth
	MaxQueueSize = 1000
)

// UI Updates
const (
	// UITickInterval - interval between progress UI redraws
	UITickInterval = 100 * time.Millisecond
)

// SFTP Transport
const (
	// SFTPDialTimeout - timeout for the TCP connect underlying the SSH connection
	SFTPDialTimeout = 30 * time.Second

	// SFTPHandshakeTimeout - timeout for the SFTP subsystem handshake once SSH is connected
	SFTPHandshakeTimeout = 15 * time.Second
)

