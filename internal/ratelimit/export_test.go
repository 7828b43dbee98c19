package ratelimit

// Tracked reports how many windows are held in memory.
func (m *MemoryLimiter) Tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}
