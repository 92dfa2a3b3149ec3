// Package ports defines the interfaces between the op bridge and its
// collaborators: the hosted engine and the process launcher. Adapters in
// infrastructure implement them.
package ports
