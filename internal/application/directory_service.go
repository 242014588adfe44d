package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/carebook/internal/persistence"
)

// UserStore captures the user persistence operations needed by the directory.
type UserStore interface {
	UpsertUser(ctx context.Context, user persistence.User) (persistence.User, error)
	GetUser(ctx context.Context, handle string) (persistence.User, error)
	UpdateUserRole(ctx context.Context, handle, role string, updatedAt time.Time) error
}

// PersonStore captures the person persistence operations needed by the directory.
type PersonStore interface {
	EnsureSelfPerson(ctx context.Context, candidate persistence.Person) (persistence.Person, error)
	CreatePerson(ctx context.Context, person persistence.Person) error
	GetPerson(ctx context.Context, id string) (persistence.Person, error)
	ListManagedPersons(ctx context.Context, ownerHandle string) ([]persistence.Person, error)
}

// DirectoryService resolves principals to the persons they may book for.
type DirectoryService struct {
	users       UserStore
	persons     PersonStore
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger

	organizers map[string]struct{}
	secretHash string
}

// DirectoryOption customises a DirectoryService.
type DirectoryOption func(*DirectoryService)

// WithOrganizerHandles registers handles that always receive the admin role.
func WithOrganizerHandles(handles ...string) DirectoryOption {
	return func(s *DirectoryService) {
		for _, h := range handles {
			if h = NormalizeHandle(h); h != "" {
				s.organizers[h] = struct{}{}
			}
		}
	}
}

// WithAdminSecretHash enables ElevateToAdmin with an argon2id hash.
func WithAdminSecretHash(hash string) DirectoryOption {
	return func(s *DirectoryService) {
		s.secretHash = strings.TrimSpace(hash)
	}
}

// NewDirectoryService constructs a directory service with the provided dependencies.
func NewDirectoryService(users UserStore, persons PersonStore, idGenerator func() string, now func() time.Time, opts ...DirectoryOption) *DirectoryService {
	return NewDirectoryServiceWithLogger(users, persons, idGenerator, now, nil, opts...)
}

// NewDirectoryServiceWithLogger constructs a directory service with a specified logger.
func NewDirectoryServiceWithLogger(users UserStore, persons PersonStore, idGenerator func() string, now func() time.Time, logger *slog.Logger, opts ...DirectoryOption) *DirectoryService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	s := &DirectoryService{
		users:       users,
		persons:     persons,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
		organizers:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *DirectoryService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "DirectoryService", operation, attrs...)
}

// RegisterUser creates or overwrites a user's role and profile.
func (s *DirectoryService) RegisterUser(ctx context.Context, params RegisterUserParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("DirectoryService is nil")
		return
	}

	handle := NormalizeHandle(params.Handle)
	logger := s.loggerWith(ctx, "RegisterUser", "handle", handle)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to register user", err)
			return
		}
		logger.With("role", user.Role).InfoContext(ctx, "user registered")
	}()

	vErr := &ValidationError{}
	if handle == "" {
		vErr.add("handle", "handle is required")
	}
	if strings.TrimSpace(params.DisplayName) == "" {
		vErr.add("display_name", "display name is required")
	}
	if strings.TrimSpace(params.Phone) == "" {
		vErr.add("phone", "phone is required")
	}
	role := params.Role
	if role != RoleIndividual && role != RoleCaregiver {
		vErr.add("role", "role must be individual or caregiver")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if _, ok := s.organizers[handle]; ok {
		role = RoleAdmin
	}

	now := s.now()
	var stored persistence.User
	stored, err = s.users.UpsertUser(ctx, persistence.User{
		Handle:        handle,
		Role:          string(role),
		DisplayName:   strings.TrimSpace(params.DisplayName),
		Phone:         strings.TrimSpace(params.Phone),
		NotifyAddress: normalizeOptional(params.NotifyAddress),
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		err = mapDirectoryRepoError(err)
		return
	}
	user = toUser(stored)
	return
}

// GetUser returns the registered user for handle.
func (s *DirectoryService) GetUser(ctx context.Context, handle string) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("DirectoryService is nil")
	}
	stored, err := s.users.GetUser(ctx, NormalizeHandle(handle))
	if err != nil {
		return User{}, mapDirectoryRepoError(err)
	}
	return toUser(stored), nil
}

// ElevateToAdmin grants the admin role when secret matches the configured hash.
func (s *DirectoryService) ElevateToAdmin(ctx context.Context, handle, secret string) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("DirectoryService is nil")
		return
	}

	handle = NormalizeHandle(handle)
	logger := s.loggerWith(ctx, "ElevateToAdmin", "handle", handle)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "admin elevation rejected", err)
			return
		}
		logger.InfoContext(ctx, "user elevated to admin")
	}()

	if s.secretHash == "" {
		err = fmt.Errorf("%w: elevation is not configured", ErrInvalidSecret)
		return
	}
	if verifyErr := VerifySecret(s.secretHash, secret); verifyErr != nil {
		if !errors.Is(verifyErr, ErrInvalidSecret) {
			logger.ErrorContext(ctx, "configured admin secret hash is unusable", "error", verifyErr)
		}
		err = ErrInvalidSecret
		return
	}

	if err = s.users.UpdateUserRole(ctx, handle, string(RoleAdmin), s.now()); err != nil {
		err = mapDirectoryRepoError(err)
		return
	}
	return s.GetUser(ctx, handle)
}

// ResolvePerson returns the individual's own person record, creating it on
// first use. Repeated calls return the same identity.
func (s *DirectoryService) ResolvePerson(ctx context.Context, principal Principal) (person Person, err error) {
	if s == nil {
		err = fmt.Errorf("DirectoryService is nil")
		return
	}

	handle := NormalizeHandle(principal.Handle)
	logger := s.loggerWith(ctx, "ResolvePerson", "handle", handle)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to resolve person", err)
		}
	}()

	var user persistence.User
	user, err = s.users.GetUser(ctx, handle)
	if err != nil {
		err = mapDirectoryRepoError(err)
		return
	}
	if Role(user.Role) != RoleIndividual {
		err = fmt.Errorf("%w: only individuals have a self person", ErrUnauthorized)
		return
	}

	name := strings.TrimSpace(user.DisplayName)
	if name == "" {
		name = user.Handle
	}
	selfOf := user.Handle

	var stored persistence.Person
	stored, err = s.persons.EnsureSelfPerson(ctx, persistence.Person{
		ID:          s.idGenerator(),
		OwnerHandle: user.Handle,
		Name:        name,
		SelfOf:      &selfOf,
		CreatedAt:   s.now(),
	})
	if err != nil {
		err = mapDirectoryRepoError(err)
		return
	}
	person = toPerson(stored)
	return
}

// ListManagedPersons returns the persons a caregiver registered, ordered by name.
func (s *DirectoryService) ListManagedPersons(ctx context.Context, principal Principal) ([]Person, error) {
	if s == nil {
		return nil, fmt.Errorf("DirectoryService is nil")
	}
	if principal.Role != RoleCaregiver {
		return nil, ErrUnauthorized
	}

	stored, err := s.persons.ListManagedPersons(ctx, NormalizeHandle(principal.Handle))
	if err != nil {
		return nil, mapDirectoryRepoError(err)
	}
	persons := make([]Person, 0, len(stored))
	for _, p := range stored {
		persons = append(persons, toPerson(p))
	}
	return persons, nil
}

// RegisterPerson creates a new dependent owned by the caregiver.
func (s *DirectoryService) RegisterPerson(ctx context.Context, params RegisterPersonParams) (person Person, err error) {
	if s == nil {
		err = fmt.Errorf("DirectoryService is nil")
		return
	}

	handle := NormalizeHandle(params.Principal.Handle)
	logger := s.loggerWith(ctx, "RegisterPerson", "handle", handle)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to register person", err)
			return
		}
		logger.With("person_id", person.ID).InfoContext(ctx, "person registered")
	}()

	if params.Principal.Role != RoleCaregiver {
		err = ErrUnauthorized
		return
	}

	vErr := &ValidationError{}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		vErr.add("name", "name is required")
	}
	nric := normalizeOptional(params.NRICLast4)
	if nric != nil && len(*nric) != 4 {
		vErr.add("nric_last4", "must be exactly 4 characters")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	record := persistence.Person{
		ID:          s.idGenerator(),
		OwnerHandle: handle,
		Name:        name,
		NRICLast4:   nric,
		CreatedAt:   s.now(),
	}
	if err = s.persons.CreatePerson(ctx, record); err != nil {
		err = mapDirectoryRepoError(err)
		return
	}
	person = toPerson(record)
	return
}

// Authorize fails with ErrNotOwned unless the principal may act for personID:
// a caregiver for the persons it registered, an individual for its self person.
func (s *DirectoryService) Authorize(ctx context.Context, principal Principal, personID string) error {
	if s == nil {
		return fmt.Errorf("DirectoryService is nil")
	}

	handle := NormalizeHandle(principal.Handle)
	person, err := s.persons.GetPerson(ctx, personID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotOwned
		}
		return mapDirectoryRepoError(err)
	}

	switch principal.Role {
	case RoleCaregiver:
		if person.SelfOf == nil && person.OwnerHandle == handle {
			return nil
		}
	case RoleIndividual:
		if person.SelfOf != nil && *person.SelfOf == handle {
			return nil
		}
	}
	return ErrNotOwned
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	return optionalString(*value)
}

func mapDirectoryRepoError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrNotFound
	default:
		return err
	}
}
