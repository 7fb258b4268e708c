// Command procureauth serves the auth API and carries the operator tasks
// around it: password hashing, MFA administration and the legacy account
// migration.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
