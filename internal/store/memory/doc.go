// Package memory provides in-process implementations of the local and remote
// stores. They back tests and the memory store types of the CLI, and allow
// injecting failures per operation and record id.
package memory
