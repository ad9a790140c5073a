package verification

import (
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore returns a store with a controllable clock.
func newTestStore(start time.Time) (*Store, *time.Time) {
	now := start
	s := NewStore()
	s.now = func() time.Time { return now }
	return s, &now
}

func TestSend_GeneratesSixDigitCode(t *testing.T) {
	s := NewStore()
	code := s.Send("+1", "5551234567")
	assert.Regexp(t, regexp.MustCompile(`^[1-9]\d{5}$`), code)
}

func TestSend_SetsRateLimitMarker(t *testing.T) {
	s, now := newTestStore(time.Unix(1_700_000_000, 0))

	assert.False(t, s.IsRateLimited("+1", "5551234567"))
	s.Send("+1", "5551234567")
	assert.True(t, s.IsRateLimited("+1", "5551234567"))

	*now = now.Add(59 * time.Second)
	assert.True(t, s.IsRateLimited("+1", "5551234567"))

	*now = now.Add(2 * time.Second)
	assert.False(t, s.IsRateLimited("+1", "5551234567"))
}

func TestSend_DifferentPhonesDoNotShareMarkers(t *testing.T) {
	s, _ := newTestStore(time.Unix(1_700_000_000, 0))
	s.Send("+1", "5551234567")
	assert.False(t, s.IsRateLimited("+1", "5559999999"))
	assert.False(t, s.IsRateLimited("+86", "5551234567"))
}

func TestVerify_HappyPath_SingleUse(t *testing.T) {
	s, _ := newTestStore(time.Unix(1_700_000_000, 0))
	code := s.Send("+1", "5551234567")

	assert.True(t, s.Verify("+1", "5551234567", code))
	// Consumed on success; a replay must fail.
	assert.False(t, s.Verify("+1", "5551234567", code))
}

func TestVerify_NoEntry(t *testing.T) {
	s := NewStore()
	assert.False(t, s.Verify("+1", "5551234567", "123456"))
}

func TestVerify_ExpiredCode(t *testing.T) {
	s, now := newTestStore(time.Unix(1_700_000_000, 0))
	code := s.Send("+1", "5551234567")

	*now = now.Add(5*time.Minute + time.Second)
	assert.False(t, s.Verify("+1", "5551234567", code))
}

func TestVerify_JustBeforeExpiry(t *testing.T) {
	s, now := newTestStore(time.Unix(1_700_000_000, 0))
	code := s.Send("+1", "5551234567")

	*now = now.Add(5*time.Minute - time.Second)
	assert.True(t, s.Verify("+1", "5551234567", code))
}

func TestVerify_ThreeWrongAttemptsBurnTheCode(t *testing.T) {
	s, _ := newTestStore(time.Unix(1_700_000_000, 0))
	code := s.Send("+1", "5551234567")

	wrong := "000000"
	if wrong == code {
		wrong = "999999"
	}
	for i := 0; i < 3; i++ {
		assert.False(t, s.Verify("+1", "5551234567", wrong))
	}
	// Fourth attempt with the correct code still fails.
	assert.False(t, s.Verify("+1", "5551234567", code))
}

func TestVerify_CorrectOnThirdAttemptSucceeds(t *testing.T) {
	s, _ := newTestStore(time.Unix(1_700_000_000, 0))
	code := s.Send("+1", "5551234567")

	wrong := "000000"
	if wrong == code {
		wrong = "999999"
	}
	assert.False(t, s.Verify("+1", "5551234567", wrong))
	assert.False(t, s.Verify("+1", "5551234567", wrong))
	assert.True(t, s.Verify("+1", "5551234567", code))
}

func TestSend_OverwritesPreviousCode(t *testing.T) {
	s, now := newTestStore(time.Unix(1_700_000_000, 0))
	first := s.Send("+1", "5551234567")

	*now = now.Add(61 * time.Second)
	second := s.Send("+1", "5551234567")

	if first != second {
		assert.False(t, s.Verify("+1", "5551234567", first))
	}
	assert.True(t, s.Verify("+1", "5551234567", second))
}

func TestSweep_RemovesExpiredEntriesAndOldMarkers(t *testing.T) {
	s, now := newTestStore(time.Unix(1_700_000_000, 0))
	s.Send("+1", "5551234567")
	s.Send("+1", "5559999999")

	*now = now.Add(6 * time.Minute)
	s.Sweep()
	require.Empty(t, s.codes)
	// Markers survive the code TTL; they are only dropped after 24h.
	require.Len(t, s.lastSend, 2)

	*now = now.Add(25 * time.Hour)
	s.Sweep()
	require.Empty(t, s.lastSend)
}

func TestVerify_ConcurrentAttemptsNeverExceedCeiling(t *testing.T) {
	s, _ := newTestStore(time.Unix(1_700_000_000, 0))
	code := s.Send("+1", "5551234567")

	wrong := "000000"
	if wrong == code {
		wrong = "999999"
	}

	var wg sync.WaitGroup
	results := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.Verify("+1", "5551234567", wrong)
		}()
	}
	wg.Wait()
	close(results)

	for ok := range results {
		assert.False(t, ok)
	}
	assert.False(t, s.Verify("+1", "5551234567", code))
}

func TestVerify_ConcurrentCorrectGuessesSucceedOnce(t *testing.T) {
	s, _ := newTestStore(time.Unix(1_700_000_000, 0))
	code := s.Send("+1", "5551234567")

	var wg sync.WaitGroup
	results := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.Verify("+1", "5551234567", code)
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for ok := range results {
		if ok {
			successes++
		}
	}
	assert.Equal(t, 1, successes)
}

func TestScenario_SendVerifyConsume(t *testing.T) {
	s, _ := newTestStore(time.Unix(1_700_000_000, 0))

	code := s.Send("+1", "5551234567")
	require.Len(t, code, 6)
	assert.True(t, s.Verify("+1", "5551234567", code))
	assert.False(t, s.Verify("+1", "5551234567", code))
}
