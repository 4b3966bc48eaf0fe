// Package domain defines the karma types and the contracts between the vote
// handler and its collaborators.
//
// It holds no transport or storage code. Adapters implement the interfaces
// declared here and the app layer consumes them.
package domain
