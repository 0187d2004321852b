package catalog

// SchedulerTraits describes which tunable fields a named learning rate
// schedule accepts beyond t_warmup.
type SchedulerTraits struct {
	AlphaF bool
	TMax   bool
}

var schedulerSpecs = map[string]argsCheck{
	"cosine_with_warmup":       nil,
	"linear_decay_with_warmup": nil,
	"constant_with_warmup":     nil,
	"inv_sqrt_with_warmup":     nil,
}

var schedulerTraits = map[string]SchedulerTraits{
	"cosine_with_warmup":       {AlphaF: true, TMax: true},
	"linear_decay_with_warmup": {AlphaF: true, TMax: true},
	"constant_with_warmup":     {TMax: true},
	"inv_sqrt_with_warmup":     {AlphaF: true},
}

// SchedulerFor returns the traits of a named schedule.
func SchedulerFor(name string) (SchedulerTraits, bool) {
	t, ok := schedulerTraits[name]
	return t, ok
}
