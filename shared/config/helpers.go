package config

import "os"

// IsLambda reports whether the process runs inside the Lambda runtime.
func IsLambda() bool {
	for _, key := range []string{"AWS_LAMBDA_FUNCTION_NAME", "AWS_LAMBDA_RUNTIME_API", "LAMBDA_TASK_ROOT"} {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}
