package config

import "time"

const (
	// DefaultHost is the interface the node API listens on.
	DefaultHost = "0.0.0.0"
	// DefaultPort is the port of the node API.
	DefaultPort = 9090
	// DefaultBatchTimeWindow is the maximum time a pending transaction waits
	// before the processor verifies the batch it belongs to.
	DefaultBatchTimeWindow = 5 * time.Second
	// DefaultDataDir is the directory of the node database, relative to the
	// user home directory.
	DefaultDataDir = ".shielded"
	// DefaultLogLevel is the log level of the node.
	DefaultLogLevel = "info"
)
