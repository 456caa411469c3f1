// Package internal holds identifier generation shared by the pipeline and
// the storage backends. Every identifier is drawn from crypto/rand.
package internal
