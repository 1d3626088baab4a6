package config

import "time"

type SessionConfig interface {
	GetRefreshSafetyMargin() time.Duration
	GetUserCacheTTL() time.Duration
	GetRequestTimeout() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetRefreshSafetyMargin() time.Duration {
	return 60 * time.Second // Refresh ahead of actual expiry
}

func (Session) GetUserCacheTTL() time.Duration {
	return 5 * time.Minute
}

func (Session) GetRequestTimeout() time.Duration {
	return 30 * time.Second
}
