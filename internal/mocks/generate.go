// Package mocks provides gomock implementations of the repository and provider ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	repo := mocks.NewMockIdentityRepository(ctrl)
//	repo.EXPECT().ResolveExternal(gomock.Any(), gomock.Any()).Return(identity, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=identity_repository_mock.go github.com/milestono/api/internal/ports IdentityRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=auth_provider_mock.go github.com/milestono/api/internal/ports AuthProvider
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=record_repository_mock.go github.com/milestono/api/internal/core RecordRepository
