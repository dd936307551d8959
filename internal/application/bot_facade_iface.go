package application

import (
	"context"

	"photobridge/internal/domain/model"
	"photobridge/internal/usecase"
)

// ---- small interfaces to decouple the facade from concrete usecase structs ----
// These describe the minimal surface that the facade needs. Using interfaces
// enables tests to pass in light-weight mocks.
type AccountUseCaseIface interface {
	Balance(ctx context.Context, accountID string) (*model.Account, error)
	AddCredits(ctx context.Context, actorTgID int64, accountID string, amount int64) (int64, error)
	IsAdmin(tgID int64) bool
}

type SubmitUseCaseIface interface {
	Submit(ctx context.Context, req usecase.SubmitRequest) (string, error)
}

type Translator interface {
	T(key string, args ...interface{}) string
	Rules() string
}
