// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command fme runs the audit pipeline: lexical call-graph analysis,
// business-flow context extraction, and group-ordered scan scheduling.
//
// Usage:
//
//	fme plan --functions functions.json --rules rules.yaml --run run-1
//	fme scan --run run-1
//	fme flow --functions functions.json --root transfer --direction down
//
// Functions are provided as a JSON array of extracted function records;
// extraction itself is a separate concern and not part of this binary.
package main

import (
	"log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
