package content

// readyDeadline returns the timestamp after which a ready request expires.
// A zero timeout never expires.
func readyDeadline(now, timeout uint64) uint64 {
	if timeout == 0 {
		return noTimeout
	}
	if now > noTimeout-timeout {
		return noTimeout
	}
	return now + timeout
}

// processTimedOutRequests releases every content whose ready request expired.
// The owner learns about it through a timed-out ready result and may request
// ready again.
func (c *Controller) processTimedOutRequests() {
	for _, id := range sortedIDs(c.contents) {
		entry, ok := c.contents[id]
		if !ok || !entry.readyRequested || c.now <= entry.readyDeadline {
			continue
		}

		c.logger.Warn("ready request timed out, releasing content",
			"content", id,
			"deadline", entry.readyDeadline,
			"now", c.now,
		)
		c.events.push(Event{
			Type:     EventContentStateChanged,
			Content:  id,
			Category: entry.category,
			From:     ContentReady,
			To:       ContentAvailable,
			Result:   ResultTimedOut,
		})

		if err := c.Release(id, Timing{}); err != nil {
			c.logger.Error("failed to release timed out content", "content", id, "error", err)
			// Release did not clear the request; stop it from firing every tick.
			entry.readyRequested = false
		}
	}
}
