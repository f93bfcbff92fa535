package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"protask/internal/domain"
	"protask/internal/errors"
	"protask/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type resetInbox struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (i *resetInbox) deliver(email, token string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.tokens[email] = token
}

func (i *resetInbox) token(email string) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.tokens[email]
}

func setupTestRepo(t *testing.T, mutate ...func(*Options)) (*SQLiteRepository, *resetInbox) {
	t.Helper()
	inbox := &resetInbox{tokens: make(map[string]string)}
	opts := DefaultOptions()
	opts.BcryptCost = bcrypt.MinCost
	opts.ResetNotifier = inbox.deliver
	for _, m := range mutate {
		m(&opts)
	}

	repo, err := NewWithOptions(filepath.Join(t.TempDir(), "protask.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo, inbox
}

func credentialReason(t *testing.T, err error) errors.CredentialReason {
	t.Helper()
	reason, ok := errors.CredentialReasonOf(err)
	require.True(t, ok, "expected credential error, got %v", err)
	return reason
}

func TestSignUp(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	account, err := repo.SignUp(ctx, " Ada@Example.com ", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, account.ID)
	assert.Equal(t, "ada@example.com", account.Email)

	current, err := repo.CurrentAccount(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, account.ID, current.ID)
}

func TestSignUp_CredentialErrors(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	_, err := repo.SignUp(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		reason   errors.CredentialReason
	}{
		{"already registered", "ADA@example.com", "another1", errors.ReasonAlreadyRegistered},
		{"weak password", "bob@example.com", "12345", errors.ReasonWeakPassword},
		{"malformed email", "bob-at-example", "secret1", errors.ReasonMalformedEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.SignUp(ctx, tt.email, tt.password)
			assert.Equal(t, tt.reason, credentialReason(t, err))
		})
	}
}

func TestLogIn(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	created, err := repo.SignUp(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, repo.SignOut(ctx))

	_, err = repo.LogIn(ctx, "ada@example.com", "wrong-password")
	assert.Equal(t, errors.ReasonInvalidCredentials, credentialReason(t, err))

	_, err = repo.LogIn(ctx, "nobody@example.com", "secret1")
	assert.Equal(t, errors.ReasonInvalidCredentials, credentialReason(t, err))

	account, err := repo.LogIn(ctx, "ADA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, account.ID)
}

func TestSignOut(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	_, err := repo.SignUp(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, repo.SignOut(ctx))

	current, err := repo.CurrentAccount(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	require.NoError(t, repo.SignOut(ctx), "signing out twice is harmless")
}

func TestOnSessionChange(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	var mu sync.Mutex
	var seen []*domain.Account
	unsubscribe := repo.OnSessionChange(func(a *domain.Account) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, a)
	})

	account, err := repo.SignUp(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, repo.SignOut(ctx))

	unsubscribe()
	_, err = repo.LogIn(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	assert.Nil(t, seen[0], "initial report while signed out")
	require.NotNil(t, seen[1])
	assert.Equal(t, account.ID, seen[1].ID)
	assert.Nil(t, seen[2])
}

func TestOnSessionChange_RestoresPersistedSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protask.db")
	opts := DefaultOptions()
	opts.BcryptCost = bcrypt.MinCost

	first, err := NewWithOptions(path, opts)
	require.NoError(t, err)
	account, err := first.SignUp(context.Background(), "ada@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewWithOptions(path, opts)
	require.NoError(t, err)
	defer second.Close()

	var restored *domain.Account
	second.OnSessionChange(func(a *domain.Account) { restored = a })
	require.NotNil(t, restored)
	assert.Equal(t, account.ID, restored.ID)
}

func TestPasswordReset(t *testing.T) {
	repo, inbox := setupTestRepo(t)
	ctx := context.Background()

	_, err := repo.SignUp(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, repo.SignOut(ctx))

	require.NoError(t, repo.RequestPasswordReset(ctx, "ada@example.com"))
	token := inbox.token("ada@example.com")
	require.NotEmpty(t, token)

	err = repo.ConfirmPasswordReset(ctx, token, "123")
	assert.Equal(t, errors.ReasonWeakPassword, credentialReason(t, err))

	require.NoError(t, repo.ConfirmPasswordReset(ctx, token, "new-secret"))

	_, err = repo.LogIn(ctx, "ada@example.com", "secret1")
	assert.Error(t, err)
	_, err = repo.LogIn(ctx, "ada@example.com", "new-secret")
	assert.NoError(t, err)

	err = repo.ConfirmPasswordReset(ctx, token, "third-secret")
	assert.True(t, errors.IsErrorType(err, errors.ErrorTypeInvalidInput), "token is single use")
}

func TestPasswordReset_UnknownEmailIsSilent(t *testing.T) {
	repo, inbox := setupTestRepo(t)

	require.NoError(t, repo.RequestPasswordReset(context.Background(), "ghost@example.com"))
	assert.Empty(t, inbox.token("ghost@example.com"))

	err := repo.RequestPasswordReset(context.Background(), "not an email")
	assert.True(t, errors.IsErrorType(err, errors.ErrorTypeInvalidInput))
}

func TestPasswordReset_Expired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	repo, inbox := setupTestRepo(t, func(o *Options) {
		o.Now = clock
		o.ResetTokenTTL = time.Minute
	})
	ctx := context.Background()

	_, err := repo.SignUp(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, repo.RequestPasswordReset(ctx, "ada@example.com"))

	now = now.Add(2 * time.Minute)
	err = repo.ConfirmPasswordReset(ctx, inbox.token("ada@example.com"), "new-secret")
	assert.True(t, errors.IsErrorType(err, errors.ErrorTypeInvalidInput))
}

func TestUpdateProfile(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	account, err := repo.SignUp(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, repo.UpdateProfile(ctx, account.ID, "Ada"))
	current, err := repo.CurrentAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada", current.DisplayName)

	err = repo.UpdateProfile(ctx, "missing", "Nobody")
	assert.True(t, errors.IsErrorType(err, errors.ErrorTypeNotFound))
}

func TestNew_InMemory(t *testing.T) {
	repo, err := New(MemoryPath)
	require.NoError(t, err)
	defer repo.Close()

	id, err := repo.Create(context.Background(), "users/u1/tasks", remote.Fields{"title": "T"})
	require.NoError(t, err)
	doc, err := repo.Get(context.Background(), "users/u1/tasks", id)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "T", doc.Fields["title"])
}

func TestClose_Idempotent(t *testing.T) {
	repo, err := New(MemoryPath)
	require.NoError(t, err)
	require.NoError(t, repo.Close())
	assert.NoError(t, repo.Close())
}
