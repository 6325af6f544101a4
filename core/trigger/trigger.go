// Package trigger detects recognized signal transitions in an event.
package trigger

import (
	"fmt"

	"github.com/kilianp07/lowbac/core/command"
	"github.com/kilianp07/lowbac/core/logger"
	"github.com/kilianp07/lowbac/core/model"
)

// Rule fires Trigger when a signal named Signal carries exactly Value.
type Rule struct {
	Trigger string
	Signal  string
	Value   any
	Intent  command.Intent
}

// DefaultRules are the recognized transitions of the door lock and start
// switch things.
var DefaultRules = []Rule{
	{Trigger: "doorLocksOpened", Signal: "doorLocks", Value: false, Intent: command.Unlock},
	{Trigger: "startRequested", Signal: "startVehicle", Value: true, Intent: command.StartEngine},
}

// RuleConfig is the configuration form of a Rule.
type RuleConfig struct {
	Name   string `json:"name"`
	Signal string `json:"signal"`
	Value  any    `json:"value"`
	Intent string `json:"intent"`
}

// ParseRules converts configured rules. An empty list yields DefaultRules.
func ParseRules(cfgs []RuleConfig) ([]Rule, error) {
	if len(cfgs) == 0 {
		return DefaultRules, nil
	}
	rules := make([]Rule, 0, len(cfgs))
	for i, c := range cfgs {
		if c.Signal == "" {
			return nil, fmt.Errorf("trigger %d: signal is required", i)
		}
		intent, err := command.ParseIntent(c.Intent)
		if err != nil {
			return nil, fmt.Errorf("trigger %d: %w", i, err)
		}
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("%s=%v", c.Signal, c.Value)
		}
		value := c.Value
		if n, ok := value.(int); ok {
			value = float64(n)
		}
		rules = append(rules, Rule{Trigger: name, Signal: c.Signal, Value: value, Intent: intent})
	}
	return rules, nil
}

// SignalObserver receives every signal of every interpreted event.
type SignalObserver func(ev model.Event, sig model.Signal)

// Interpreter matches event signals against rules.
type Interpreter struct {
	rules   []Rule
	known   map[string]bool
	log     logger.Logger
	observe SignalObserver
}

// NewInterpreter creates an Interpreter. observe may be nil.
func NewInterpreter(rules []Rule, log logger.Logger, observe SignalObserver) *Interpreter {
	known := make(map[string]bool, len(rules))
	for _, r := range rules {
		known[r.Signal] = true
	}
	return &Interpreter{rules: rules, known: known, log: log, observe: observe}
}

// FindTriggers returns the rules fired by ev, in rule order and at most once
// each. Every signal is echoed to the log and the observer.
func (in *Interpreter) FindTriggers(ev model.Event) []Rule {
	fired := make([]bool, len(in.rules))
	for _, sig := range ev.Signals {
		in.log.Infof("%s", sig)
		if in.observe != nil {
			in.observe(ev, sig)
		}
		if !in.known[sig.Name] {
			in.log.Debugf("ignoring unrecognized signal %s", sig.Name)
			continue
		}
		for i, r := range in.rules {
			if r.Signal == sig.Name && model.ValueEqual(r.Value, sig.Value) {
				fired[i] = true
			}
		}
	}
	var out []Rule
	for i, ok := range fired {
		if ok {
			out = append(out, in.rules[i])
		}
	}
	return out
}
