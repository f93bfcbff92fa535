package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	stderrors "errors"
	"strings"

	"protask/internal/domain"
	"protask/internal/errors"
	"protask/internal/logging"
	"protask/internal/remote"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const accountColumns = `a.id, a.email, a.password_hash, a.display_name, a.created_at`

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp registers a new account and makes it the current session.
func (r *SQLiteRepository) SignUp(ctx context.Context, email, password string) (*domain.Account, error) {
	email = normalizeEmail(email)
	if !r.opts.Validator.IsValidEmail(email) {
		return nil, errors.NewCredentialError(errors.ReasonMalformedEmail)
	}
	if !r.opts.Validator.IsStrongPassword(password) {
		return nil, errors.NewCredentialError(errors.ReasonWeakPassword)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.opts.BcryptCost)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeValidation, "could not hash password")
	}

	account := &Account{
		ID:           uuid.Must(uuid.NewV7()).String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    r.now(),
	}

	ctx, cancel := r.writeContext(ctx)
	defer cancel()
	err = WithTx(ctx, r.db, "sign up", func(tx *sql.Tx) error {
		var existing int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE email = ?`, email).Scan(&existing); err != nil {
			return HandleDatabaseError("check account", err)
		}
		if existing > 0 {
			return errors.NewCredentialError(errors.ReasonAlreadyRegistered)
		}
		if err := Execute(ctx, tx, "create account",
			`INSERT INTO accounts (id, email, password_hash, display_name, created_at) VALUES (?, ?, ?, ?, ?)`,
			account.ID, account.Email, account.PasswordHash, account.DisplayName, FormatTimeForDB(account.CreatedAt)); err != nil {
			return err
		}
		return r.setSession(ctx, tx, account.ID)
	})
	if err != nil {
		return nil, err
	}

	logging.Debugf("sqlite: registered %s\n", account.ID)
	r.notify(account.ToDomain())
	return account.ToDomain(), nil
}

// LogIn checks the credentials and makes the account the current session.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (r *SQLiteRepository) LogIn(ctx context.Context, email, password string) (*domain.Account, error) {
	email = normalizeEmail(email)

	qctx, cancel := r.queryContext(ctx)
	account, err := QuerySingle(qctx, r.db,
		`SELECT `+accountColumns+` FROM accounts a WHERE a.email = ?`,
		ScanAccount, "account", email, email)
	cancel()
	if err != nil {
		if errors.IsErrorType(err, errors.ErrorTypeNotFound) {
			return nil, errors.NewCredentialError(errors.ReasonInvalidCredentials)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		if stderrors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, errors.NewCredentialError(errors.ReasonInvalidCredentials)
		}
		return nil, errors.WrapError(err, errors.ErrorTypeValidation, "could not verify password")
	}

	wctx, cancel := r.writeContext(ctx)
	defer cancel()
	if err := r.setSession(wctx, r.db, account.ID); err != nil {
		return nil, err
	}

	r.notify(account.ToDomain())
	return account.ToDomain(), nil
}

// SignOut ends the current session. Signing out while signed out is a no-op
// apart from the notification.
func (r *SQLiteRepository) SignOut(ctx context.Context) error {
	ctx, cancel := r.writeContext(ctx)
	defer cancel()
	if err := Execute(ctx, r.db, "end session", `DELETE FROM sessions`); err != nil {
		return err
	}
	r.notify(nil)
	return nil
}

// CurrentAccount returns the account of the persisted session, or nil.
func (r *SQLiteRepository) CurrentAccount(ctx context.Context) (*domain.Account, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()
	account, err := QuerySingle(ctx, r.db,
		`SELECT `+accountColumns+` FROM sessions s JOIN accounts a ON a.id = s.account_id WHERE s.slot = 1`,
		ScanAccount, "session", "current")
	if err != nil {
		if errors.IsErrorType(err, errors.ErrorTypeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return account.ToDomain(), nil
}

// RequestPasswordReset issues a reset token for email. Unknown addresses
// succeed silently so the call does not reveal which emails are registered.
func (r *SQLiteRepository) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if !r.opts.Validator.IsValidEmail(email) {
		return errors.NewInvalidInputError("email", email, "not a valid email address")
	}

	qctx, cancel := r.queryContext(ctx)
	account, err := QuerySingle(qctx, r.db,
		`SELECT `+accountColumns+` FROM accounts a WHERE a.email = ?`,
		ScanAccount, "account", email, email)
	cancel()
	if err != nil {
		if errors.IsErrorType(err, errors.ErrorTypeNotFound) {
			logging.Debugf("sqlite: password reset for unknown address\n")
			return nil
		}
		return err
	}

	token := uuid.NewString()
	wctx, cancel := r.writeContext(ctx)
	defer cancel()
	err = Execute(wctx, r.db, "issue password reset",
		`INSERT INTO password_resets (token_hash, account_id, expires_at) VALUES (?, ?, ?)`,
		hashToken(token), account.ID, FormatTimeForDB(r.now().Add(r.opts.ResetTokenTTL)))
	if err != nil {
		return err
	}

	if r.opts.ResetNotifier != nil {
		r.opts.ResetNotifier(email, token)
	}
	return nil
}

// ConfirmPasswordReset sets a new password using a token issued by
// RequestPasswordReset. Tokens are single use.
func (r *SQLiteRepository) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if !r.opts.Validator.IsStrongPassword(newPassword) {
		return errors.NewCredentialError(errors.ReasonWeakPassword)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), r.opts.BcryptCost)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeValidation, "could not hash password")
	}

	ctx, cancel := r.writeContext(ctx)
	defer cancel()
	return WithTx(ctx, r.db, "confirm password reset", func(tx *sql.Tx) error {
		reset, err := QuerySingle(ctx, tx,
			`SELECT token_hash, account_id, expires_at, used_at FROM password_resets WHERE token_hash = ?`,
			ScanPasswordReset, "password reset", "token", hashToken(token))
		if err != nil && !errors.IsErrorType(err, errors.ErrorTypeNotFound) {
			return err
		}
		if reset == nil || reset.UsedAt != nil || !r.now().Before(reset.ExpiresAt) {
			return errors.NewInvalidInputError("token", "", "reset token is invalid or expired")
		}

		if err := ExecuteWithRowsAffected(ctx, tx,
			`UPDATE accounts SET password_hash = ? WHERE id = ?`,
			"account", reset.AccountID, string(hash), reset.AccountID); err != nil {
			return err
		}
		return Execute(ctx, tx, "consume password reset",
			`UPDATE password_resets SET used_at = ? WHERE token_hash = ?`,
			FormatTimeForDB(r.now()), reset.TokenHash)
	})
}

// UpdateProfile stores the provider-side display name of an account.
func (r *SQLiteRepository) UpdateProfile(ctx context.Context, id, displayName string) error {
	ctx, cancel := r.writeContext(ctx)
	defer cancel()
	return ExecuteWithRowsAffected(ctx, r.db,
		`UPDATE accounts SET display_name = ? WHERE id = ?`,
		"account", id, displayName, id)
}

// OnSessionChange registers fn and immediately reports the persisted
// session, so a session from an earlier run is restored.
func (r *SQLiteRepository) OnSessionChange(fn func(account *domain.Account)) remote.Unsubscribe {
	r.listenersMu.Lock()
	id := r.nextListener
	r.nextListener++
	r.listeners[id] = fn
	r.listenersMu.Unlock()

	current, err := r.CurrentAccount(context.Background())
	if err != nil {
		logging.Errorf("sqlite: could not restore session: %v\n", err)
		current = nil
	}
	r.notifyMu.Lock()
	fn(current)
	r.notifyMu.Unlock()

	return func() {
		r.listenersMu.Lock()
		delete(r.listeners, id)
		r.listenersMu.Unlock()
	}
}

func (r *SQLiteRepository) setSession(ctx context.Context, q Querier, accountID string) error {
	return Execute(ctx, q, "start session",
		`INSERT INTO sessions (slot, account_id, created_at) VALUES (1, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET account_id = excluded.account_id, created_at = excluded.created_at`,
		accountID, FormatTimeForDB(r.now()))
}

func (r *SQLiteRepository) notify(account *domain.Account) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.listenersMu.Lock()
	fns := make([]func(*domain.Account), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.listenersMu.Unlock()

	for _, fn := range fns {
		if account == nil {
			fn(nil)
			continue
		}
		copied := *account
		fn(&copied)
	}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
