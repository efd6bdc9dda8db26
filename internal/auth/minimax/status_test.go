package minimax

import (
	"os"
	"testing"
	"time"
)

func TestStatusStates(t *testing.T) {
	store := NewTokenStore(t.TempDir())

	if got := store.Status(RegionCN); got.State != StateAbsent {
		t.Fatalf("expected absent, got %v", got.State)
	}

	valid := NewTokenStorage(&MiniMaxTokenData{
		AccessToken:  "AT1",
		RefreshToken: "RT1",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
	}, RegionCN)
	if err := store.Save(valid); err != nil {
		t.Fatalf("Save: %v", err)
	}
	status := store.Status(RegionCN)
	if status.State != StateValid {
		t.Fatalf("expected valid, got %v", status.State)
	}
	if !status.HasRefreshToken {
		t.Fatalf("status must report the refresh token")
	}
	if status.ExpiresAt.Unix() != valid.ExpiresAt {
		t.Fatalf("status expiry mismatch: %v vs %d", status.ExpiresAt, valid.ExpiresAt)
	}

	expired := NewTokenStorage(&MiniMaxTokenData{
		AccessToken: "AT1",
		ExpiresAt:   time.Now().Add(-time.Hour).Unix(),
	}, RegionCN)
	if err := store.Save(expired); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := store.Status(RegionCN); got.State != StateExpired {
		t.Fatalf("expected expired, got %v", got.State)
	}

	if err := os.WriteFile(store.Path(RegionCN), []byte("garbage"), 0600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	if got := store.Status(RegionCN); got.State != StateCorrupt {
		t.Fatalf("expected corrupt, got %v", got.State)
	}
}

func TestTokenStateString(t *testing.T) {
	cases := map[TokenState]string{
		StateAbsent:  "absent",
		StateValid:   "valid",
		StateExpired: "expired",
		StateCorrupt: "corrupt",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("state %d: expected %q, got %q", state, want, got)
		}
	}
}
