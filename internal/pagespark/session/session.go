package session

import "time"

// ID returns the stable session identifier.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.ID
}

// CreatedAt returns the session creation timestamp.
func (s *Session) CreatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.CreatedAt
}

// ExpiresAt returns the absolute expiry timestamp for the session.
func (s *Session) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.ExpiresAt
}

// RememberMe indicates whether the session should persist beyond the default lifetime.
func (s *Session) RememberMe() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.RememberMe
}

// SetRememberMe toggles the remember-me state and adjusts expiry accordingly.
func (s *Session) SetRememberMe(remember bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.RememberMe == remember {
		return
	}
	s.data.RememberMe = remember
	s.data.ExpiresAt = s.cfg.computeExpiry(s.data.CreatedAt, remember)
	s.dirty = true
}

// GetItem implements storage.Backend.
func (s *Session) GetItem(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data.Items[key]
	return v, ok
}

// SetItem implements storage.Backend.
func (s *Session) SetItem(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Items == nil {
		s.data.Items = make(map[string]string)
	}
	if current, ok := s.data.Items[key]; ok && current == value {
		return nil
	}
	s.data.Items[key] = value
	s.dirty = true
	return nil
}

// RemoveItem implements storage.Backend.
func (s *Session) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Items[key]; !ok {
		return nil
	}
	delete(s.data.Items, key)
	s.dirty = true
	return nil
}

// AddFlash queues a notification for the next rendered page.
func (s *Session) AddFlash(f Flash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Flashes = append(s.data.Flashes, f)
	s.dirty = true
}

// PopFlashes returns and clears queued notifications.
func (s *Session) PopFlashes() []Flash {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.data.Flashes) == 0 {
		return nil
	}
	out := s.data.Flashes
	s.data.Flashes = nil
	s.dirty = true
	return out
}

// DraftID returns the wizard draft bound to this session.
func (s *Session) DraftID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.DraftID
}

// SetDraftID binds a wizard draft to this session.
func (s *Session) SetDraftID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.DraftID == id {
		return
	}
	s.data.DraftID = id
	s.dirty = true
}

// ValidatedAt reports when the stored credentials were last confirmed by the backend.
func (s *Session) ValidatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.ValidatedAt
}

// MarkValidated records a successful backend credential check. A zero time clears it.
func (s *Session) MarkValidated(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.ValidatedAt = at.UTC()
	s.dirty = true
}

// LastLiveURL returns the URL of the most recently generated page.
func (s *Session) LastLiveURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.LastLiveURL
}

// SetLastLiveURL records the URL of the most recently generated page.
func (s *Session) SetLastLiveURL(u string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.LastLiveURL == u {
		return
	}
	s.data.LastLiveURL = u
	s.dirty = true
}

// Destroy marks the session for deletion at the end of the request.
func (s *Session) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
	s.dirty = true
}

// Destroyed exposes the destroy marker.
func (s *Session) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// Touch updates the last active timestamp.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now = now.UTC()
	if now.After(s.data.LastActive) {
		s.data.LastActive = now
		s.dirty = true
	}
}

// Dirty indicates whether the session contents have changed during this request.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

func (s *Session) snapshot() Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.data
	data.Items = make(map[string]string, len(s.data.Items))
	for k, v := range s.data.Items {
		data.Items[k] = v
	}
	data.Flashes = append([]Flash(nil), s.data.Flashes...)
	return data
}
