package parser

import "fmt"

// Step is the smallest unit of schema change: one marker-delimited block of
// SQL, possibly containing template expressions.
type Step struct {
	Author   string
	ID       string
	SQL      string
	Filename string // slash-separated path relative to the schema root
}

// Key returns the identity of the step. Two steps with the same author and
// id in different files are distinct.
func (s Step) Key() Key {
	return Key{Filename: s.Filename, Author: s.Author, ID: s.ID}
}

// String formats the step identity for logs and error messages.
func (s Step) String() string {
	return s.Key().String()
}

// Key identifies a step in the ledger.
type Key struct {
	Filename string
	Author   string
	ID       string
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s (%s)", k.Author, k.ID, k.Filename)
}
