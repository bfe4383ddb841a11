// Package random implements the secure random interface on crypto/rand.
package random
