package catalog

import "fmt"

var loggerSpecs = map[string]argsCheck{
	"wandb":       checkWandb,
	"tensorboard": checkTensorboard,
	"mlflow":      checkMLflow,
	"inmemory":    noArgs("inmemory"),
}

func checkWandb(args map[string]interface{}) []Problem {
	var problems []Problem
	for arg, value := range args {
		switch arg {
		case "project", "entity", "group", "name":
			if _, ok := stringArg(value); !ok {
				problems = append(problems, Problem{Arg: arg, Message: fmt.Sprintf("%s must be a string", arg)})
			}
		case "tags":
			items, ok := value.([]interface{})
			if !ok {
				problems = append(problems, Problem{Arg: arg, Message: "tags must be a list of strings"})
				continue
			}
			for _, item := range items {
				if _, ok := stringArg(item); !ok {
					problems = append(problems, Problem{Arg: arg, Message: "tags must be a list of strings"})
					break
				}
			}
		case "log_artifacts":
			if _, ok := value.(bool); !ok {
				problems = append(problems, Problem{Arg: arg, Message: "log_artifacts must be a boolean"})
			}
		default:
			problems = append(problems, Problem{Arg: arg, Message: fmt.Sprintf("unknown argument %q for wandb", arg)})
		}
	}
	return problems
}

func checkTensorboard(args map[string]interface{}) []Problem {
	var problems []Problem
	for arg, value := range args {
		switch arg {
		case "log_dir":
			if _, ok := stringArg(value); !ok {
				problems = append(problems, Problem{Arg: arg, Message: "log_dir must be a string"})
			}
		case "flush_interval":
			n, ok := intArg(value)
			if !ok || n <= 0 {
				problems = append(problems, Problem{Arg: arg, Message: "flush_interval must be a positive integer"})
			}
		default:
			problems = append(problems, Problem{Arg: arg, Message: fmt.Sprintf("unknown argument %q for tensorboard", arg)})
		}
	}
	return problems
}

func checkMLflow(args map[string]interface{}) []Problem {
	var problems []Problem
	for arg, value := range args {
		switch arg {
		case "experiment_name", "run_name", "tracking_uri":
			if _, ok := stringArg(value); !ok {
				problems = append(problems, Problem{Arg: arg, Message: fmt.Sprintf("%s must be a string", arg)})
			}
		default:
			problems = append(problems, Problem{Arg: arg, Message: fmt.Sprintf("unknown argument %q for mlflow", arg)})
		}
	}
	return problems
}
