package memo

import "time"

// Seed is a memo delivered automatically shortly after startup, giving
// the inbox the look of work done overnight.
type Seed struct {
	SenderID string
	Subject  string
	Body     string
	Delay    time.Duration
}

// DefaultSeeds returns the stock overnight memos, staggered so they
// arrive one at a time.
func DefaultSeeds() []Seed {
	return []Seed{
		{
			SenderID: "it",
			Subject:  "Server Infrastructure 101 (Requested)",
			Body: `To: The Operator
From: IT Department
Re: Servers (Why, When, How)

Per your request for a half-page summary:

1. Why do we need a server?
Currently the engine dies when the host process stops. A server is just
a computer that never sleeps.

2. When do we need it?
Now, if you want asynchronous work while you are away.

3. How do we get one?
Never buy, always rent. A small VPS runs 5-10 dollars a month. I can
deploy the core to a container once you authorize the budget.

Signed,
IT Dept (Backend Engineering)`,
			Delay: 3 * time.Second,
		},
		{
			SenderID: "it",
			Subject:  "Project DFAIS: Deployment Strategy",
			Body: `To: The Operator
From: IT Department
Re: Taking DFAIS live

I ran the numbers for the global rollout against the stated budget.

The problem: state lives only on this machine. Switch devices and we
are not there.

The solution: a hosted frontend plus a cloud database for persistence.
Free tiers cover the first phase; the domain costs about 12 dollars a
year.

Ready to execute on your command.

- IT`,
			Delay: 8 * time.Second,
		},
		{
			SenderID: "oracle",
			Subject:  "SYSTEM BROADCAST: DFAIS PROTOCOLS ACTIVE",
			Body: `*** INCOMING TRANSMISSION FROM THE ARCHITECT ***

All personas are hereby notified.
The DFAIS initiative has been authorized.

Directives:
1. IT is authorized to proceed with deployment analysis.
2. MEI is authorized to oversee the transition.
3. ROOT is authorized to flush the cache.

This is a one-way transmission.
The Architect watches.

*** TRANSMISSION END ***`,
			Delay: 12 * time.Second,
		},
	}
}

// PlantSeeds schedules delivery of each seed. A seed whose subject is
// already in the inbox is skipped, so replanting after a restore does
// not duplicate threads. onDeliver may be nil.
func PlantSeeds(store *Store, sched *Scheduler, seeds []Seed, onDeliver func(Thread)) {
	for _, seed := range seeds {
		seed := seed
		if hasSubject(store, seed.SenderID, seed.Subject) {
			continue
		}
		sched.Schedule("seed:"+seed.Subject, seed.Delay, func() {
			if hasSubject(store, seed.SenderID, seed.Subject) {
				return
			}
			t, _ := store.Deliver(seed.SenderID, seed.Subject, seed.Body)
			if onDeliver != nil {
				onDeliver(t)
			}
		})
	}
}

func hasSubject(store *Store, senderID, subject string) bool {
	for _, t := range store.List() {
		if t.SenderID == senderID && t.Subject == subject {
			return true
		}
	}
	return false
}
