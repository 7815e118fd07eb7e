package authcore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/tidegate/authcore/notify"
	"github.com/tidegate/authcore/token"
)

func validInput() RegisterInput {
	return RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Name:     "Alice",
		Password: "correct-horse-1",
	}
}

func codeFromJob(t *testing.T, job recordedJob) string {
	t.Helper()

	var payload EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		t.Fatalf("decode payload failed: %v", err)
	}
	if payload.Code == "" {
		t.Fatal("expected a non-empty code in the payload")
	}
	return payload.Code
}

func TestRegisterCreatesInactivePrincipal(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	creds := newMemCredentials()
	notifier := &memNotifier{}
	engine := newTestEngine(t, rdb, creds, notifier, nil)

	result, err := engine.Register(ctx, validInput())
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if result.Principal == nil || result.Principal.ID == "" {
		t.Fatal("expected a created principal")
	}
	if result.Principal.IsActive {
		t.Fatal("new principals must start inactive")
	}
	if !result.NotificationEnqueued || result.JobID == "" {
		t.Fatal("expected the verification notification to be enqueued")
	}
	if notifier.count() != 1 || notifier.last().Type != JobSendVerificationEmail {
		t.Fatalf("expected one %s job, got %d jobs", JobSendVerificationEmail, notifier.count())
	}

	// Unverified accounts cannot log in yet.
	if _, err := engine.Login(ctx, "alice", "correct-horse-1"); !errors.Is(err, ErrAccountNotActivated) {
		t.Fatalf("expected ErrAccountNotActivated before verification, got %v", err)
	}
}

func TestRegisterDuplicates(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	creds := newMemCredentials()
	engine := newTestEngine(t, rdb, creds, &memNotifier{}, nil)

	if _, err := engine.Register(ctx, validInput()); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	input := validInput()
	input.Email = "other@example.com"
	if _, err := engine.Register(ctx, input); !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}

	input = validInput()
	input.Username = "other"
	if _, err := engine.Register(ctx, input); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	engine := newTestEngine(t, rdb, newMemCredentials(), &memNotifier{}, nil)

	cases := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"short username", func(in *RegisterInput) { in.Username = "a" }},
		{"uppercase username", func(in *RegisterInput) { in.Username = "Alice" }},
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }},
		{"short password", func(in *RegisterInput) { in.Password = "short" }},
	}
	for _, tc := range cases {
		input := validInput()
		tc.mutate(&input)
		if _, err := engine.Register(ctx, input); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", tc.name, err)
		}
	}
}

func TestRegisterKeepsPrincipalOnEnqueueFailure(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	creds := newMemCredentials()
	notifier := &memNotifier{fail: errors.New("queue down")}
	engine := newTestEngine(t, rdb, creds, notifier, nil)

	result, err := engine.Register(ctx, validInput())
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if result.NotificationEnqueued {
		t.Fatal("expected NotificationEnqueued=false when the queue is down")
	}
	if _, err := creds.FindByUsername(ctx, "alice"); err != nil {
		t.Fatalf("expected the principal to survive the enqueue failure: %v", err)
	}
	// The orphaned code must not linger.
	if got := len(mr.Keys()); got != 0 {
		t.Fatalf("expected no leftover redis keys, got %d", got)
	}
}

func TestVerifyAccountActivates(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	creds := newMemCredentials()
	notifier := &memNotifier{}
	engine := newTestEngine(t, rdb, creds, notifier, nil)

	if _, err := engine.Register(ctx, validInput()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	code := codeFromJob(t, notifier.last())

	if err := engine.VerifyAccount(ctx, code); err != nil {
		t.Fatalf("VerifyAccount failed: %v", err)
	}
	if _, err := engine.Login(ctx, "alice", "correct-horse-1"); err != nil {
		t.Fatalf("Login after verification failed: %v", err)
	}

	// The code is consumed: replay fails.
	if err := engine.VerifyAccount(ctx, code); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected replayed code to fail with ErrCodeInvalid, got %v", err)
	}
}

func TestVerifyAccountUnknownCode(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, newMemCredentials(), &memNotifier{}, nil)

	if err := engine.VerifyAccount(context.Background(), "no-such-code"); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid, got %v", err)
	}
}

func TestVerifyAccountExpiredCode(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	notifier := &memNotifier{}
	engine := newTestEngine(t, rdb, newMemCredentials(), notifier, func(cfg *Config) {
		cfg.Codes.VerifyAccountTTL = time.Minute
	})

	if _, err := engine.Register(ctx, validInput()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	code := codeFromJob(t, notifier.last())

	mr.FastForward(2 * time.Minute)

	if err := engine.VerifyAccount(ctx, code); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected expired code to fail with ErrCodeInvalid, got %v", err)
	}
}

func TestVerifyAccountAlreadyActive(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	creds := newMemCredentials()
	engine := newTestEngine(t, rdb, creds, &memNotifier{}, nil)
	seedPrincipal(t, engine, creds, Principal{Username: "alice", Email: "alice@example.com", IsActive: true}, "correct-horse-1")

	// A live code for an already-active account succeeds without side
	// effects.
	code := token.NewOpaqueCode()
	if err := engine.codes.Put(ctx, codeKey(token.TypeVerifyAccount, code), []byte("alice@example.com"), time.Hour); err != nil {
		t.Fatalf("seed code failed: %v", err)
	}
	if err := engine.VerifyAccount(ctx, code); err != nil {
		t.Fatalf("VerifyAccount on active account failed: %v", err)
	}
}

func TestRegisterDispatchesThroughQueue(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	creds := newMemCredentials()
	queue := notify.NewQueue(rdb, notify.QueueConfig{})
	engine := newTestEngine(t, rdb, creds, queue, nil)

	result, err := engine.Register(ctx, validInput())
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !result.NotificationEnqueued {
		t.Fatal("expected the job to be enqueued")
	}

	status, err := queue.Status(ctx, result.JobID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.State != notify.StatePending {
		t.Fatalf("expected pending job, got %s", status.State)
	}

	// A worker delivers the email and the one-time code activates the
	// account end to end.
	var delivered EmailPayload
	worker := notify.NewWorker(queue, notify.WorkerConfig{PollTimeout: 100 * time.Millisecond}, nil)
	worker.Register(JobSendVerificationEmail, func(_ context.Context, job notify.Job) (string, error) {
		if err := json.Unmarshal(job.Payload, &delivered); err != nil {
			return "", err
		}
		return "delivered", nil
	})

	processed, err := worker.RunOne(ctx)
	if err != nil || !processed {
		t.Fatalf("RunOne failed: processed=%v err=%v", processed, err)
	}

	status, err = queue.Status(ctx, result.JobID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.State != notify.StateCompleted {
		t.Fatalf("expected completed job, got %s", status.State)
	}

	if err := engine.VerifyAccount(ctx, delivered.Code); err != nil {
		t.Fatalf("VerifyAccount failed: %v", err)
	}
	if _, err := engine.Login(ctx, "alice", "correct-horse-1"); err != nil {
		t.Fatalf("Login after verification failed: %v", err)
	}
}

func TestDeleteAccount(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	creds := newMemCredentials()
	engine := newTestEngine(t, rdb, creds, nil, nil)
	seedPrincipal(t, engine, creds, Principal{Username: "alice", Email: "alice@example.com", IsActive: true}, "correct-horse-1")

	pair, err := engine.Login(ctx, "alice", "correct-horse-1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := engine.DeleteAccount(ctx, pair.AccessToken); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}

	// The presented token is revoked and the principal is gone from every
	// lookup.
	if _, err := engine.CurrentUser(ctx, pair.AccessToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected revoked token after deletion, got %v", err)
	}
	if _, err := engine.Login(ctx, "alice", "correct-horse-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected soft-deleted principal to be invisible, got %v", err)
	}
}

func TestPurgeAccountRequiresSuperuser(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	creds := newMemCredentials()
	engine := newTestEngine(t, rdb, creds, nil, nil)

	target := seedPrincipal(t, engine, creds, Principal{Username: "alice", Email: "alice@example.com", IsActive: true}, "correct-horse-1")
	seedPrincipal(t, engine, creds, Principal{Username: "root", Email: "root@example.com", IsActive: true, IsSuperuser: true}, "correct-horse-1")

	alicePair, err := engine.Login(ctx, "alice", "correct-horse-1")
	if err != nil {
		t.Fatalf("Login alice failed: %v", err)
	}
	rootPair, err := engine.Login(ctx, "root", "correct-horse-1")
	if err != nil {
		t.Fatalf("Login root failed: %v", err)
	}

	if err := engine.PurgeAccount(ctx, alicePair.AccessToken, target.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-superuser, got %v", err)
	}

	if err := engine.PurgeAccount(ctx, rootPair.AccessToken, target.ID); err != nil {
		t.Fatalf("PurgeAccount failed: %v", err)
	}
	if _, err := creds.FindByID(ctx, target.ID); !errors.Is(err, ErrPrincipalNotFound) {
		t.Fatalf("expected purged principal to be gone, got %v", err)
	}

	if err := engine.PurgeAccount(ctx, rootPair.AccessToken, target.ID); !errors.Is(err, ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound for repeated purge, got %v", err)
	}
}
