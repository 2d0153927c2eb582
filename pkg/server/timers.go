package server

import (
	"time"

	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/icb"
)

// Sleep bounds for the housekeeping loop. One shared timer serves every
// session; it wakes at the earliest upcoming deadline, clamped so a
// just-passed deadline cannot busy-loop and an idle server still polls
// often enough to notice new sessions.
const (
	minTimerSleep = time.Second
	maxTimerSleep = 10 * time.Second
)

func (s *Server) timerLoop() {
	timer := time.NewTimer(maxTimerSleep)
	defer timer.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
			timer.Reset(s.tick(time.Now()))
		}
	}
}

// tick runs one housekeeping pass: keepalive probes, dead-connection
// drops, idle-moderator demotion, idler relocation, and throttle-table
// cleanup. It returns how long the loop may sleep until the next
// deadline comes due.
func (s *Server) tick(now time.Time) time.Duration {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	pingAfter := s.cfg.Timeouts.Ping.Duration()
	dropAfter := s.cfg.Timeouts.Connection.Duration()

	for _, sess := range s.core.Sessions.All() {
		idle := sess.Idle(now)
		if dropAfter > 0 && idle > dropAfter {
			s.core.Broker.Deliver(sess.ID, icb.Status("Drop", "Idle connection closed."))
			s.core.Broker.Deliver(sess.ID, icb.Exit())
			continue
		}
		if pingAfter > 0 && idle > pingAfter && now.Sub(sess.LastPing) > pingAfter {
			sess.LastPing = now
			s.core.Broker.Deliver(sess.ID, icb.Ping())
		}
	}

	s.core.DemoteIdleModerators()
	s.core.MoveIdlers()
	s.core.AwayNotices.Cleanup()
	s.core.MboxNotices.Cleanup()

	return s.nextWake(now)
}

// nextWake computes the minimum next-wake interval across all sessions'
// pending deadlines.
func (s *Server) nextWake(now time.Time) time.Duration {
	sleep := maxTimerSleep
	consider := func(deadline time.Time) {
		d := deadline.Sub(now)
		if d < minTimerSleep {
			d = minTimerSleep
		}
		if d < sleep {
			sleep = d
		}
	}

	pingAfter := s.cfg.Timeouts.Ping.Duration()
	dropAfter := s.cfg.Timeouts.Connection.Duration()
	idleMod := s.cfg.Timeouts.IdleMod.Duration()
	idleBoot := s.cfg.Timeouts.IdleBoot.Duration()

	for _, sess := range s.core.Sessions.All() {
		if dropAfter > 0 {
			consider(sess.LastAlive.Add(dropAfter))
		}
		if pingAfter > 0 {
			base := sess.LastAlive
			if sess.LastPing.After(base) {
				base = sess.LastPing
			}
			consider(base.Add(pingAfter))
		}
		if idleBoot > 0 && sess.LoggedIn() {
			consider(sess.LastAlive.Add(idleBoot))
		}
	}
	if idleMod > 0 {
		for _, g := range s.core.Groups.GetGroups() {
			if g.Moderator == "" {
				continue
			}
			if mod, err := s.core.Sessions.Get(g.Moderator); err == nil {
				consider(mod.LastAlive.Add(idleMod))
			}
		}
	}
	return sleep
}
