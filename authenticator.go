package users

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// LoginResult bundles the issued token pair with the public view of the
// authenticated user.
type LoginResult struct {
	Tokens TokenPair  `json:"tokens"`
	User   PublicUser `json:"user"`
}

// Auther authenticates credentials against the user directory and issues
// token pairs. Failed attempts are indistinguishable to the caller whether
// the email is unknown or the password is wrong; only suspended accounts
// surface a distinct error.
type Auther struct {
	repo         RepositoryManager
	policy       Policy
	hasher       PasswordAuthenticator
	tokenService TokenService
	audit        AuditLogger
	logger       Logger
	now          func() time.Time
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, tokenService TokenService) *Auther {
	return &Auther{
		repo:         repo,
		policy:       NewPolicy(),
		hasher:       BcryptHasher{},
		tokenService: tokenService,
		audit:        noopAuditLogger{},
		logger:       defLogger{},
		now:          time.Now,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithAuditLogger configures the audit sink for auth events.
func (s *Auther) WithAuditLogger(audit AuditLogger) *Auther {
	s.audit = normalizeAuditLogger(audit)
	return s
}

// WithPasswordAuthenticator overrides the credential hasher.
func (s *Auther) WithPasswordAuthenticator(hasher PasswordAuthenticator) *Auther {
	if hasher != nil {
		s.hasher = hasher
	}
	return s
}

// WithClock injects a custom clock (useful for tests).
func (s *Auther) WithClock(clock func() time.Time) *Auther {
	if clock != nil {
		s.now = clock
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies the email/password pair and issues tokens. Unknown emails
// burn a bcrypt compare so the timing matches a wrong password.
func (s *Auther) Login(ctx context.Context, email, password, ip string) (*LoginResult, error) {
	normalized := NormalizeEmail(email)

	user, err := s.repo.Users().GetByEmail(ctx, normalized)
	if err != nil {
		if goerrors.IsNotFound(err) {
			// burn a compare through the configured hasher so the timing
			// matches the wrong-password path
			_ = s.hasher.ComparePasswordAndHash(password, dummyCompareHash)
			s.recordLoginFailure(ctx, nil, normalized, "invalid_credentials", ip)
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("Login lookup error", "error", err)
		return nil, err
	}

	if err := s.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		s.recordLoginFailure(ctx, nil, normalized, "invalid_credentials", ip)
		return nil, ErrInvalidCredentials
	}

	if err := statusAuthError(user.Status); err != nil {
		s.logger.Warn("Login blocked due to user status", "status", user.Status, "email", user.Email)
		s.recordLoginFailure(ctx, user, normalized, "user_suspended", ip)
		return nil, err
	}

	tokens, err := s.tokenService.IssuePair(NewIdentityFromUser(user))
	if err != nil {
		s.logger.Error("Login token issuance error", "error", err)
		return nil, err
	}

	at := s.now()
	if err := s.repo.Users().TrackSuccessfulLogin(ctx, user, at); err != nil {
		s.logger.Warn("Login failed to track last login", "error", err)
	} else {
		user.LastLoginAt = &at
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:    actorRef(user),
		Action:   ActionLoginSuccess,
		Entity:   EntityUser,
		EntityID: entityRef(user.ID),
		Metadata: map[string]any{
			"email": user.Email,
		},
		IPAddress: ip,
	})

	return &LoginResult{
		Tokens: tokens,
		User:   user.Public(),
	}, nil
}

// Refresh exchanges a valid refresh token for a fresh pair.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	return s.tokenService.Refresh(refreshToken)
}

// Validate delegates to the token service.
func (s *Auther) Validate(tokenString string) (AuthClaims, error) {
	return s.tokenService.Validate(tokenString)
}

// ListUsers returns the filtered directory listing for privileged actors.
// Unknown role or status filter values are ignored with a warning rather
// than failing the request.
func (s *Auther) ListUsers(ctx context.Context, actor *User, filters ListFilters) ([]*User, error) {
	if err := s.policy.Authorize(actor, OpListUsers, nil); err != nil {
		return nil, err
	}

	if filters.Role != "" && !filters.Role.IsValid() {
		s.logger.Warn("ListUsers ignoring unknown role filter", "role", filters.Role)
		filters.Role = ""
	}

	if filters.Status != "" && !filters.Status.IsValid() {
		s.logger.Warn("ListUsers ignoring unknown status filter", "status", filters.Status)
		filters.Status = ""
	}

	return s.repo.Users().List(ctx, filters)
}

// GetUser resolves a single record. Admins may read anyone; everyone else
// only themselves.
func (s *Auther) GetUser(ctx context.Context, actor *User, targetID string) (*User, error) {
	target, err := s.repo.Users().GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if err := s.policy.Authorize(actor, OpReadUser, target); err != nil {
		return nil, err
	}

	return target, nil
}

func (s *Auther) recordLoginFailure(ctx context.Context, user *User, email, reason, ip string) {
	entry := AuditEntry{
		Actor:  actorRef(user),
		Action: ActionLoginFailed,
		Entity: EntityUser,
		Metadata: map[string]any{
			"email":  email,
			"reason": reason,
		},
		IPAddress: ip,
	}

	if user != nil {
		entry.EntityID = entityRef(user.ID)
	}

	s.audit.Record(ctx, entry)
}
