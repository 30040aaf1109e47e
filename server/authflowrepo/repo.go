package authflowrepo

import (
	"context"
	"time"
)

// AuthFlowState is the pending state of one authorization redirect. It is
// created when the guard redirects to the authorization server and consumed
// exactly once by the callback.
type AuthFlowState struct {
	State        string    `json:"state"`
	CodeVerifier string    `json:"code_verifier"`
	Nonce        string    `json:"nonce"`
	ReturnURL    string    `json:"return_url"`
	CreatedAt    time.Time `json:"created_at"`
}

// Repo stores pending auth states. Entries expire after the repo's TTL.
type Repo interface {
	Upsert(ctx context.Context, state string, authState *AuthFlowState) error
	Get(ctx context.Context, state string) (*AuthFlowState, error)
	// Consume removes and returns the entry. Concurrent callers presenting
	// the same state see at most one success; the rest get ErrStateNotFound.
	Consume(ctx context.Context, state string) (*AuthFlowState, error)
	Delete(ctx context.Context, state string) error
	Ping(ctx context.Context) error
	Close() error
}
