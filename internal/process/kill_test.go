package process

// Notes:
// - Real kill behavior is not tested: signalling a live process group from a
//   unit test could take down the test runner. We only check argument
//   validation and that a stale PID surfaces an error instead of panicking.

import (
	"errors"
	"testing"
)

// ---------------------------------------------------------------------------
// TestKillProcessGroup - Invalid PID Handling
// ---------------------------------------------------------------------------

func TestKillProcessGroup_RejectsNonPositivePID(t *testing.T) {
	t.Parallel()

	for _, pid := range []int{0, -1} {
		if err := KillProcessGroup(pid); !errors.Is(err, ErrInvalidPID) {
			t.Errorf("KillProcessGroup(%d) = %v, want ErrInvalidPID", pid, err)
		}
	}
}

func TestKillProcessGroup_StalePID(t *testing.T) {
	t.Parallel()

	if err := KillProcessGroup(999999999); err == nil {
		t.Error("KillProcessGroup(stale pid) = nil, want error")
	}
}
