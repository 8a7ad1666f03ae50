// Package memory provides a recycling pool for expensive resources.
// Resources are lent out as handles; releasing a handle returns the
// resource to the pool's idle queue, or destroys it if the pool has
// already been closed. The pool's identity lives in a shared state
// block, so handles stay valid across pool moves and outlive the
// pool head itself.
package memory
