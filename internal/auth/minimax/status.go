package minimax

import (
	"errors"
	"time"
)

// TokenState classifies the stored credential for a region.
type TokenState int

const (
	// StateAbsent means no token file exists.
	StateAbsent TokenState = iota
	// StateValid means a credential exists and is outside the refresh margin.
	StateValid
	// StateExpired means a credential exists but is past or within the refresh margin.
	StateExpired
	// StateCorrupt means a token file exists but cannot be parsed.
	StateCorrupt
)

// String returns the display name of the state.
func (s TokenState) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateValid:
		return "valid"
	case StateExpired:
		return "expired"
	case StateCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// Status is a read-only report over the stored credential.
type Status struct {
	// Region is the region tag inspected.
	Region string
	// State classifies the credential.
	State TokenState
	// ExpiresAt is the access token expiry; zero for absent/corrupt records.
	ExpiresAt time.Time
	// HasRefreshToken reports whether the credential can be refreshed without re-login.
	HasRefreshToken bool
}

// Status inspects the stored credential for a region. It never triggers a
// refresh or any network call.
func (s *TokenStore) Status(region string) Status {
	ts, err := s.Load(region)
	if err != nil {
		if errors.Is(err, ErrCorruptTokenFile) {
			return Status{Region: region, State: StateCorrupt}
		}
		// Unreadable for other reasons (permissions) still means no usable credential.
		return Status{Region: region, State: StateCorrupt}
	}
	if ts == nil {
		return Status{Region: region, State: StateAbsent}
	}

	state := StateValid
	if ts.IsExpired() {
		state = StateExpired
	}
	return Status{
		Region:          region,
		State:           state,
		ExpiresAt:       ts.ExpiresAtTime(),
		HasRefreshToken: ts.RefreshToken != "",
	}
}
