package catalog

// OptimizerTraits describes which tunable fields a named optimizer
// accepts beyond lr and weight_decay.
type OptimizerTraits struct {
	Betas    bool
	Eps      bool
	Momentum bool
}

var optimizerSpecs = map[string]argsCheck{
	"decoupled_adamw": nil,
	"decoupled_lionw": nil,
	"adamw":           nil,
	"lion":            nil,
	"sgd":             nil,
}

var optimizerTraits = map[string]OptimizerTraits{
	"decoupled_adamw": {Betas: true, Eps: true},
	"adamw":           {Betas: true, Eps: true},
	"decoupled_lionw": {Betas: true},
	"lion":            {Betas: true},
	"sgd":             {Momentum: true},
}

// OptimizerFor returns the traits of a named optimizer.
func OptimizerFor(name string) (OptimizerTraits, bool) {
	t, ok := optimizerTraits[name]
	return t, ok
}
