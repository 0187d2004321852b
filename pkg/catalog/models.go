package catalog

// Model and dataloader arguments carry their own typed schema, so the
// registry only tracks the known names here.

var modelSpecs = map[string]argsCheck{
	"hf_causal_lm":  nil,
	"mpt_causal_lm": nil,
}

var loaderSpecs = map[string]argsCheck{
	"finetuning": nil,
	"text":       nil,
}
