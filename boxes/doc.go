// Package boxes opens and caches the collections an owner
// serves and runs key-value operations against them.
package boxes
