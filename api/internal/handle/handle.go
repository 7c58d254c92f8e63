package handle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"content-proxy/api/internal/auth"
	"content-proxy/api/internal/billing"
	"content-proxy/api/internal/provider"
	"content-proxy/api/internal/provider/aiml"
	"content-proxy/api/internal/provider/creatomate"
	"content-proxy/api/internal/provider/openai"
	"content-proxy/api/internal/provider/pollinations"
	"content-proxy/api/internal/provider/polza"
	"content-proxy/api/internal/ratelimit"
	"content-proxy/api/internal/store"
	"content-proxy/api/internal/task"
	"content-proxy/api/internal/yookassa"
)

type UserStore interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, email, passwordHash, name string) (int64, error)
	Authenticate(ctx context.Context, email, passwordHash string) (store.User, error)
	TouchLogin(ctx context.Context, id int64) error
	Profile(ctx context.Context, id int64) (store.Profile, error)
}

type SubscriptionStore interface {
	Activate(ctx context.Context, userID int64, plan string, start time.Time, days int, autoRenew bool) (int64, error)
	CancelAutoRenew(ctx context.Context, userID int64) (int64, error)
}

type PaymentStore interface {
	CreatePending(ctx context.Context, userID int64, amount float64, method, yookassaID string) (int64, error)
	CompleteWithSubscription(ctx context.Context, c store.Completion) (int64, error)
}

type GenerationStore interface {
	Record(ctx context.Context, g store.Generation) error
	UpdateStatus(ctx context.Context, provider, taskID, status, url string) error
}

type Notifier interface {
	Configured() bool
	Send(ctx context.Context, text string) error
}

// VideoGenerator animates a still image described by prompt.
type VideoGenerator interface {
	GenerateVideo(ctx context.Context, prompt, inputImage string) (task.State, error)
}

// Deps is everything the functions need. Stores are nil when DATABASE_URL is unset.
type Deps struct {
	Log *zap.Logger

	AIML         *aiml.Engine
	Polza        *polza.Engine
	OpenAI       *openai.Engine
	Creatomate   *creatomate.Engine
	Pollinations *pollinations.Engine
	// Video is the ai-generate video backend; VideoEnv names its credential.
	Video    VideoGenerator
	VideoEnv string
	// TextChain and ImageChain are tried in order by ai-generate.
	TextChain  []provider.TextGenerator
	ImageChain []provider.ImageGenerator

	Checkout *yookassa.Client
	Plans    *billing.Catalog
	Signer   *auth.Signer

	Users         UserStore
	Subscriptions SubscriptionStore
	Payments      PaymentStore
	Generations   GenerationStore

	Limiter  ratelimit.Limiter
	Telegram Notifier

	GenerateRequireAuth bool
	PaymentReturnURL    string
	PaymentBrand        string

	Now func() time.Time
}

type Handle struct {
	Deps
}

func New(d Deps) *Handle {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Plans == nil {
		d.Plans = billing.Default()
	}
	if d.Pollinations == nil {
		d.Pollinations = pollinations.New()
	}
	if d.Signer == nil {
		d.Signer = auth.NewSigner("default-secret")
	}
	if d.PaymentBrand == "" {
		d.PaymentBrand = "ROUSHEN"
	}
	return &Handle{Deps: d}
}
