// Package retrieval defines the contract between the HTTP layer and whatever
// fetches a post: the Retriever interface, the tagged Outcome it returns, the
// error classification shared by implementations, and the traversal-safe
// target path resolution.
//
// Retrieve has no deadline of its own. Implementations bound individual
// upstream round trips; the caller decides whether to bound the whole call.
package retrieval
