// Package game implements the session raffle: personas earn one ticket
// per calendar day and spend tickets on prize spins.
package game

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// ErrAlreadyClaimed is returned when a persona claims a second ticket
// on the same calendar day.
var ErrAlreadyClaimed = errors.New("ticket already claimed today")

// ErrNoTickets is returned when spinning with an empty ticket balance.
var ErrNoTickets = errors.New("no tickets to spend")

// jackpotOdds is the chance a spin lands the jackpot.
const jackpotOdds = 0.03

// Jackpot is the top prize name.
const Jackpot = "GOLDEN FISH TROPHY"

// junkPrizes are the consolation prizes.
var junkPrizes = []string{
	"a bent paperclip",
	"expired coupon for soup",
	"a single chopstick",
	"novelty eraser (used)",
	"mystery key that opens nothing",
	"sticker of a confused cat",
	"half a deck of cards",
}

// Prize is the outcome of one spin.
type Prize struct {
	Name    string `json:"name"`
	Jackpot bool   `json:"jackpot"`
}

// State is a persona's raffle standing.
type State struct {
	Tickets     int       `json:"tickets"`
	LastClaim   time.Time `json:"last_claim,omitempty"`
	TotalSpins  int       `json:"total_spins"`
	JackpotWins int       `json:"jackpot_wins"`
}

// Raffle tracks tickets and spins for all personas.
type Raffle struct {
	mu     sync.Mutex
	states map[string]*State
	rng    *rand.Rand
	now    func() time.Time
}

// New creates a raffle seeded from the current time.
func New() *Raffle {
	return NewWithSource(rand.NewSource(time.Now().UnixNano()), time.Now)
}

// NewWithSource creates a raffle with explicit randomness and clock,
// for tests.
func NewWithSource(src rand.Source, now func() time.Time) *Raffle {
	return &Raffle{
		states: make(map[string]*State),
		rng:    rand.New(src),
		now:    now,
	}
}

// AddTicket grants one ticket, at most once per calendar day.
func (r *Raffle) AddTicket(personaID string) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.state(personaID)
	now := r.now()
	if sameDay(st.LastClaim, now) {
		return *st, fmt.Errorf("%w (persona %s)", ErrAlreadyClaimed, personaID)
	}
	st.Tickets++
	st.LastClaim = now
	return *st, nil
}

// Spin spends one ticket and draws a prize.
func (r *Raffle) Spin(personaID string) (Prize, State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.state(personaID)
	if st.Tickets <= 0 {
		return Prize{}, *st, fmt.Errorf("%w (persona %s)", ErrNoTickets, personaID)
	}
	st.Tickets--
	st.TotalSpins++

	var prize Prize
	if r.rng.Float64() < jackpotOdds {
		prize = Prize{Name: Jackpot, Jackpot: true}
		st.JackpotWins++
	} else {
		prize = Prize{Name: junkPrizes[r.rng.Intn(len(junkPrizes))]}
	}
	return prize, *st, nil
}

// StateOf returns a persona's current standing.
func (r *Raffle) StateOf(personaID string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.state(personaID)
}

// Export captures all states for a snapshot.
func (r *Raffle) Export() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]State, len(r.states))
	for id, st := range r.states {
		out[id] = *st
	}
	return out
}

// Restore replaces all states wholesale.
func (r *Raffle) Restore(states map[string]State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = make(map[string]*State, len(states))
	for id, st := range states {
		cp := st
		r.states[id] = &cp
	}
}

func (r *Raffle) state(personaID string) *State {
	st, ok := r.states[personaID]
	if !ok {
		st = &State{}
		r.states[personaID] = st
	}
	return st
}

func sameDay(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
