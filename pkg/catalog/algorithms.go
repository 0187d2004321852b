package catalog

import "fmt"

var algorithmSpecs = map[string]argsCheck{
	"gradient_clipping":       checkGradientClipping,
	"low_precision_layernorm": noArgs("low_precision_layernorm"),
	"low_precision_groupnorm": noArgs("low_precision_groupnorm"),
}

var clippingTypes = map[string]bool{
	"norm":     true,
	"value":    true,
	"adaptive": true,
}

func checkGradientClipping(args map[string]interface{}) []Problem {
	var problems []Problem

	if _, ok := args["clipping_type"]; !ok {
		problems = append(problems, Problem{Arg: "clipping_type", Message: "clipping_type is required"})
	}

	for arg, value := range args {
		switch arg {
		case "clipping_type":
			s, ok := stringArg(value)
			if !ok || !clippingTypes[s] {
				problems = append(problems, Problem{Arg: arg, Message: `clipping_type must be one of "norm", "value", "adaptive"`})
			}
		case "clipping_threshold":
			f, ok := floatArg(value)
			if !ok || f <= 0 {
				problems = append(problems, Problem{Arg: arg, Message: "clipping_threshold must be a positive number"})
			}
		default:
			problems = append(problems, Problem{Arg: arg, Message: fmt.Sprintf("unknown argument %q for gradient_clipping", arg)})
		}
	}

	return problems
}
