// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jobdef

import "fmt"

// Validate performs structural checks on a parsed job and returns a
// list of human-readable issues. An empty list means the job shape is
// valid. Semantic validation of operation and output options belongs
// to the stage and renderer constructors; Validate only checks what
// must hold before construction can be attempted: type tags present,
// output paths present and unique, and the job not empty.
func Validate(job *Job) []string {
	var issues []string

	if len(job.Operations) == 0 && len(job.Outputs) == 0 {
		issues = append(issues, "job has no operations and no outputs")
	}

	for i, operation := range job.Operations {
		if operation.Type == "" {
			issues = append(issues, fmt.Sprintf("operations[%d]: missing type", i))
		}
	}

	pathOwner := make(map[string]int)
	for i, output := range job.Outputs {
		if output.Type == "" {
			issues = append(issues, fmt.Sprintf("outputs[%d]: missing type", i))
		}
		if output.Path == "" {
			issues = append(issues, fmt.Sprintf("outputs[%d] %q: missing path", i, output.Type))
			continue
		}
		if owner, duplicate := pathOwner[output.Path]; duplicate {
			issues = append(issues, fmt.Sprintf("outputs[%d] %q: path %q already used by outputs[%d]",
				i, output.Type, output.Path, owner))
			continue
		}
		pathOwner[output.Path] = i
	}

	return issues
}
