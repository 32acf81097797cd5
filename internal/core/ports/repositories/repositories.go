package repositories

// RepositoryProvider holds all repository interfaces needed by services.
// Repositories should be initialized elsewhere (e.g., in main) and passed here.
type RepositoryProvider struct {
	AccountRepo AccountReader
	UserRepo    UserRepositoryFacade
	EntryRepo   EntryRepositoryFacade
}
