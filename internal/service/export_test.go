package service

import "time"

// SetClock replaces the time source of the auth service.
func (s *AuthService) SetClock(now func() time.Time) { s.now = now }

// SetClock replaces the time source used for default backup labels.
func (s *BackupService) SetClock(now func() time.Time) { s.now = now }
