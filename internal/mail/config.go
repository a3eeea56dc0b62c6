package mail

import "time"

// Config sizes the dispatcher.
type Config struct {
	// Workers is the number of goroutines delivering messages.
	Workers int
	// QueueSize is how many messages may wait before Enqueue starts refusing.
	QueueSize int
	// SendTimeout bounds a single Transport.Send call.
	SendTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Workers:     2,
		QueueSize:   100,
		SendTimeout: 15 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = def.QueueSize
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = def.SendTimeout
	}
	return c
}
