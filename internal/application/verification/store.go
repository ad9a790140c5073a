package verification

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"
)

const (
	codeTTL         = 5 * time.Minute
	rateLimitWindow = 60 * time.Second
	maxAttempts     = 3
	markerRetention = 24 * time.Hour
)

type codeEntry struct {
	code      string
	expiresAt time.Time
	attempts  int
}

// Store is an in-memory, mutex-guarded store of one-time phone verification
// codes. All state is keyed by countryCode+":"+phoneNumber and owned entirely
// by this store; every mutating operation is atomic per store, so check-then-act
// races (double send inside the rate window, attempts racing past the ceiling)
// cannot occur. A background sweep only bounds memory; Send/Verify enforce
// expiry and limits on their own.
type Store struct {
	mu       sync.Mutex
	codes    map[string]*codeEntry
	lastSend map[string]time.Time

	// now is swappable in tests.
	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		codes:    make(map[string]*codeEntry),
		lastSend: make(map[string]time.Time),
		now:      time.Now,
	}
}

func key(countryCode, phoneNumber string) string {
	return countryCode + ":" + phoneNumber
}

// IsRateLimited reports whether a code was sent to this phone inside the
// rate-limit window. Read-only.
func (s *Store) IsRateLimited(countryCode, phoneNumber string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastSend[key(countryCode, phoneNumber)]
	return ok && s.now().Sub(last) < rateLimitWindow
}

// Send generates a fresh 6-digit code, replaces any prior entry for the phone,
// and stamps the rate-limit marker. It never refuses: the rate-limit check is
// the caller's policy decision, made before Send.
func (s *Store) Send(countryCode, phoneNumber string) string {
	code := generateCode()
	k := key(countryCode, phoneNumber)

	s.mu.Lock()
	now := s.now()
	s.codes[k] = &codeEntry{code: code, expiresAt: now.Add(codeTTL)}
	s.lastSend[k] = now
	s.mu.Unlock()

	return code
}

// Verify checks candidate against the stored code. The code is single-use:
// a match deletes the entry. An expired entry or one past the attempt ceiling
// is deleted and treated as absent. A mismatch keeps the incremented attempt
// count, so three wrong guesses permanently burn the code.
func (s *Store) Verify(countryCode, phoneNumber, candidate string) bool {
	k := key(countryCode, phoneNumber)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.codes[k]
	if !ok {
		return false
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.codes, k)
		return false
	}
	if entry.attempts >= maxAttempts {
		delete(s.codes, k)
		return false
	}
	entry.attempts++
	if entry.code != candidate {
		return false
	}
	delete(s.codes, k)
	return true
}

// Sweep drops expired code entries and rate-limit markers older than the
// marker retention. Intended to run periodically.
func (s *Store) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, entry := range s.codes {
		if !now.Before(entry.expiresAt) {
			delete(s.codes, k)
		}
	}
	for k, last := range s.lastSend {
		if now.Sub(last) > markerRetention {
			delete(s.lastSend, k)
		}
	}
}

// StartSweeper runs Sweep every interval until stop is closed.
func (s *Store) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				s.Sweep()
			case <-stop:
				return
			}
		}
	}()
}

// generateCode returns a uniform random code in 100000–999999. The low range
// 000000–099999 is deliberately never produced.
func generateCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		// crypto/rand only fails when the platform source is broken.
		slog.Error("verification code generation failed", "err", err)
		panic(err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000)
}
