// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import "fmt"

// DefaultPrimaries is the rotation of records sent one per datagram
var DefaultPrimaries = []MessageType{MsgGPS, MsgGPSDateTime, MsgAirData, MsgRawIMU, MsgRawPressure}

// DefaultSecondaries alternate on every datagram, attitude first
var DefaultSecondaries = [2]MessageType{MsgAttitude, MsgLocalPosition}

// Selection is the pair of records to send for one datagram
type Selection struct {
	Primary   MessageType
	Secondary MessageType
}

func (s Selection) String() string {
	return fmt.Sprintf("%s+%s", s.Primary, s.Secondary)
}

// Scheduler is a deterministic round-robin over the primary types plus an
// alternating toggle between two secondary types. Every primary is sent
// once per len(primaries) calls; each secondary every other call.
//
// A Scheduler is not safe for concurrent use.
type Scheduler struct {
	primaries   []MessageType
	secondaries [2]MessageType
	index       int
	toggle      bool
	calls       uint64
}

// NewScheduler creates a scheduler with the default rotation
func NewScheduler() *Scheduler {
	s, _ := NewCustomScheduler(DefaultPrimaries, DefaultSecondaries)
	return s
}

// NewCustomScheduler creates a scheduler over the given types
func NewCustomScheduler(primaries []MessageType, secondaries [2]MessageType) (*Scheduler, error) {
	if len(primaries) == 0 {
		return nil, fmt.Errorf("scheduler needs at least one primary type")
	}
	for _, t := range append(append([]MessageType(nil), primaries...), secondaries[:]...) {
		if !t.Valid() {
			return nil, fmt.Errorf("scheduler: %w: %d", ErrUnknownMessageType, int(t))
		}
	}
	return &Scheduler{
		primaries:   append([]MessageType(nil), primaries...),
		secondaries: secondaries,
	}, nil
}

// Peek returns the selection the next call to Next will return
func (s *Scheduler) Peek() Selection {
	sel := Selection{Primary: s.primaries[s.index], Secondary: s.secondaries[0]}
	if s.toggle {
		sel.Secondary = s.secondaries[1]
	}
	return sel
}

// Next returns the current selection and advances the rotation
func (s *Scheduler) Next() Selection {
	sel := s.Peek()
	s.index = (s.index + 1) % len(s.primaries)
	s.toggle = !s.toggle
	s.calls++
	return sel
}

// Calls returns how many selections were made
func (s *Scheduler) Calls() uint64 {
	return s.calls
}

// Period returns the number of calls after which the sequence repeats
func (s *Scheduler) Period() int {
	if len(s.primaries)%2 == 0 {
		return len(s.primaries)
	}
	return 2 * len(s.primaries)
}
