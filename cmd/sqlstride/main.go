// Package main provides the sqlstride command line tool.
//
// The CLI supports:
//   - sync: Apply pending steps from the schema directory
//   - status: Show applied and pending steps and the lock holder
//   - doctor: Run health checks on the schema directory and database
//   - unlock: Release a stale migration lock
//   - dump: Write existing database objects out as steps
//   - init: Scaffold sqlstride.yaml and the schema directory
//
// Usage:
//
//	sqlstride [flags] <command>
//
// Configuration is read from sqlstride.yaml (discovered by walking up to the
// repository root), SQLSTRIDE_* environment variables and flags, in
// increasing order of precedence.
package main

func main() {
	Execute()
}
