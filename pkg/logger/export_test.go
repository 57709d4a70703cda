package logger

// Reset drops the process logger so the next Init installs a new one.
func Reset() {
	mu.Lock()
	instance = nil
	mu.Unlock()
}
