package catalog

import "fmt"

var callbackSpecs = map[string]argsCheck{
	"speed_monitor":     checkSpeedMonitor,
	"lr_monitor":        noArgs("lr_monitor"),
	"memory_monitor":    noArgs("memory_monitor"),
	"runtime_estimator": noArgs("runtime_estimator"),
	"optimizer_monitor": checkOptimizerMonitor,
}

func checkSpeedMonitor(args map[string]interface{}) []Problem {
	var problems []Problem
	for arg, value := range args {
		switch arg {
		case "window_size":
			n, ok := intArg(value)
			if !ok || n <= 0 {
				problems = append(problems, Problem{Arg: arg, Message: "window_size must be a positive integer"})
			}
		case "gpu_flops_available":
			if _, ok := floatArg(value); !ok {
				problems = append(problems, Problem{Arg: arg, Message: "gpu_flops_available must be a number"})
			}
		default:
			problems = append(problems, Problem{Arg: arg, Message: fmt.Sprintf("unknown argument %q for speed_monitor", arg)})
		}
	}
	return problems
}

func checkOptimizerMonitor(args map[string]interface{}) []Problem {
	var problems []Problem
	for arg, value := range args {
		switch arg {
		case "log_optimizer_metrics":
			if _, ok := value.(bool); !ok {
				problems = append(problems, Problem{Arg: arg, Message: "log_optimizer_metrics must be a boolean"})
			}
		default:
			problems = append(problems, Problem{Arg: arg, Message: fmt.Sprintf("unknown argument %q for optimizer_monitor", arg)})
		}
	}
	return problems
}
