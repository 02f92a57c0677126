// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package timeservice is the example bus interface: a clock with a
// settable alarm broadcast as a signal.
package timeservice

import (
	"sync"
	"time"

	"github.com/luxfi/wsrpc"
)

// Name is the interface's bus name.
const Name = "ee.arti.TimeService"

// AlarmPayload is broadcast by the alarm_clock signal.
const AlarmPayload = "ALARM"

type service struct {
	iface *wsrpc.Interface

	mu         sync.Mutex
	alarmDelay int // seconds
}

// New builds the TimeService interface:
//
//   - method time() returns the current UTC time as ISO-8601 with a
//     trailing Z
//   - method set_alarm() fires the alarm_clock signal after alarm_delay
//     seconds
//   - property alarm_delay (read/write, integer seconds, default 1)
func New() *wsrpc.Interface {
	s := &service{alarmDelay: 1}
	s.iface = wsrpc.NewInterface(Name, wsrpc.Definition{
		Methods: []wsrpc.Method{
			{Name: "time", Fn: s.time},
			{Name: "set_alarm", Fn: s.setAlarm},
		},
		Signals: []wsrpc.Signal{
			{Name: "alarm_clock", Fn: s.alarmClock},
		},
		Properties: []wsrpc.Property{
			{Name: "alarm_delay", Get: s.getAlarmDelay, Set: s.setAlarmDelay},
		},
	})
	return s.iface
}

func (s *service) time(args []any) (any, error) {
	if len(args) != 0 {
		return nil, wsrpc.ErrInvalidParams
	}
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000") + "Z", nil
}

func (s *service) setAlarm(args []any) (any, error) {
	if len(args) != 0 {
		return nil, wsrpc.ErrInvalidParams
	}
	s.mu.Lock()
	delay := time.Duration(s.alarmDelay) * time.Second
	s.mu.Unlock()

	time.AfterFunc(delay, func() {
		s.iface.Fire("alarm_clock")
	})
	return nil, nil
}

func (s *service) alarmClock(args []any) any {
	return AlarmPayload
}

func (s *service) getAlarmDelay() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alarmDelay
}

func (s *service) setAlarmDelay(v any) error {
	var delay int
	switch n := v.(type) {
	case float64: // JSON numbers decode as float64
		delay = int(n)
	case int:
		delay = n
	default:
		return wsrpc.ErrInvalidParams
	}
	s.mu.Lock()
	s.alarmDelay = delay
	s.mu.Unlock()
	return nil
}
