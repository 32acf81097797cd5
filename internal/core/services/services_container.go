package services

import (
	portsrepo "github.com/transitcore/finance_backend/internal/core/ports/repositories"
	portssvc "github.com/transitcore/finance_backend/internal/core/ports/services"
)

// NewServiceContainer creates a new service container with properly initialized dependencies
func NewServiceContainer(repos portsrepo.RepositoryProvider) *portssvc.ServiceContainer {
	container := &portssvc.ServiceContainer{}

	// Account service first since entry validation depends on it
	container.Account = NewAccountService(repos.AccountRepo)
	container.User = NewUserService(repos.UserRepo)
	container.Entry = NewEntryService(repos.EntryRepo, container.Account)
	container.EditSession = NewEditSessionManager(container.Entry)

	return container
}
