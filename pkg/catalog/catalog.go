// Package catalog mirrors the component registries of the training
// harness: the named models, data loaders, optimizers, schedulers,
// algorithms, callbacks and loggers a run configuration may reference,
// with an argument check per name.
package catalog

import (
	"fmt"
	"sort"
)

type Kind string

const (
	Models     Kind = "model"
	Loaders    Kind = "dataloader"
	Optimizers Kind = "optimizer"
	Schedulers Kind = "scheduler"
	Algorithms Kind = "algorithm"
	Callbacks  Kind = "callback"
	Loggers    Kind = "logger"
)

// Problem describes one rejected argument of a named component.
type Problem struct {
	Arg     string
	Message string
}

type argsCheck func(args map[string]interface{}) []Problem

var registry = map[Kind]map[string]argsCheck{
	Models:     modelSpecs,
	Loaders:    loaderSpecs,
	Optimizers: optimizerSpecs,
	Schedulers: schedulerSpecs,
	Algorithms: algorithmSpecs,
	Callbacks:  callbackSpecs,
	Loggers:    loggerSpecs,
}

// Has reports whether name is a registered component of the given kind.
func Has(kind Kind, name string) bool {
	specs, ok := registry[kind]
	if !ok {
		return false
	}
	_, ok = specs[name]
	return ok
}

// Names returns the registered component names for a kind, sorted.
func Names(kind Kind) []string {
	specs := registry[kind]
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check validates the argument mapping of a named component. An unknown
// name yields a single problem, with a suggestion when a registered name
// is close.
func Check(kind Kind, name string, args map[string]interface{}) []Problem {
	specs, ok := registry[kind]
	if !ok {
		return nil
	}
	check, known := specs[name]
	if !known {
		msg := fmt.Sprintf("unknown %s %q", kind, name)
		if s := Suggest(kind, name); s != "" {
			msg = fmt.Sprintf("%s (did you mean %q?)", msg, s)
		}
		return []Problem{{Message: msg}}
	}
	if check == nil {
		return nil
	}
	problems := check(args)
	sortProblems(problems)
	return problems
}

// Suggest returns the registered name closest to the given one, or ""
// when nothing is close enough to be a plausible typo.
func Suggest(kind Kind, name string) string {
	best := ""
	bestDist := 4
	for _, candidate := range Names(kind) {
		d := editDistance(name, candidate)
		if d < bestDist {
			best = candidate
			bestDist = d
		}
	}
	return best
}

func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func sortProblems(problems []Problem) {
	sort.Slice(problems, func(i, j int) bool {
		if problems[i].Arg != problems[j].Arg {
			return problems[i].Arg < problems[j].Arg
		}
		return problems[i].Message < problems[j].Message
	})
}

func intArg(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int64(n)) {
			return int(n), true
		}
	}
	return 0, false
}

func floatArg(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func stringArg(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func noArgs(name string) argsCheck {
	return func(args map[string]interface{}) []Problem {
		var problems []Problem
		for arg := range args {
			problems = append(problems, Problem{Arg: arg, Message: fmt.Sprintf("%s takes no arguments", name)})
		}
		return problems
	}
}
